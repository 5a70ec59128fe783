package cli

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/youmna-rabie/line-assistant/internal/app"
	"github.com/youmna-rabie/line-assistant/internal/prompt"
	"github.com/youmna-rabie/line-assistant/internal/types"
)

var (
	eventsLimit  int
	eventsStatus string
	eventsAddr   string
)

func init() {
	listEventsCmd.Flags().IntVar(&eventsLimit, "limit", 20, "maximum number of events to display")
	listEventsCmd.Flags().StringVar(&eventsStatus, "status", "", "only show events with this status")
	listEventsCmd.Flags().StringVar(&eventsAddr, "addr", "", "base URL of a running server (default from config)")
	rootCmd.AddCommand(listChannelsCmd, listSkillsCmd, listPromptsCmd, listEventsCmd)
}

var listChannelsCmd = &cobra.Command{
	Use:   "list-channels",
	Short: "Print configured channels",
	RunE:  listChannels,
}

func listChannels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(cfg.Channels) == 0 {
		fmt.Fprintln(out, "No channels configured.")
		return nil
	}

	fmt.Fprintf(out, "%-20s %-10s %s\n", "NAME", "TYPE", "WAKE WORD")
	for _, ch := range cfg.Channels {
		fmt.Fprintf(out, "%-20s %-10s %s\n", ch.Name, ch.Type, ch.WakeWord)
	}
	return nil
}

var listSkillsCmd = &cobra.Command{
	Use:   "list-skills",
	Short: "Print registered skills",
	RunE:  listSkills,
}

func listSkills(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-24s %s\n", "NAME", "DOMAIN")
	for _, s := range app.Catalog() {
		fmt.Fprintf(out, "%-24s %s\n", s.Name, s.Domain)
	}
	return nil
}

var listPromptsCmd = &cobra.Command{
	Use:   "list-prompts",
	Short: "Print prompt templates, built-in and overridden",
	RunE:  listPrompts,
}

func listPrompts(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := prompt.NewRegistry(cfg.Prompts.Dirs)
	if err != nil {
		return fmt.Errorf("loading prompts: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-12s %-60s %s\n", "NAME", "DESCRIPTION", "PATH")
	for _, t := range reg.Templates() {
		fmt.Fprintf(out, "%-12s %-60s %s\n", t.Name, t.Description, t.Path)
	}
	return nil
}

var listEventsCmd = &cobra.Command{
	Use:   "list-events",
	Short: "Print recent events from a running server",
	RunE:  listEvents,
}

func listEvents(cmd *cobra.Command, args []string) error {
	base := eventsAddr
	if base == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		host := cfg.Server.Host
		if host == "0.0.0.0" || host == "" {
			host = "127.0.0.1"
		}
		base = "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))
	}

	q := url.Values{"limit": {strconv.Itoa(eventsLimit)}}
	if eventsStatus != "" {
		q.Set("status", eventsStatus)
	}
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, base+"/admin/events?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("querying server: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("querying server: status %d", resp.StatusCode)
	}

	var body struct {
		Events []types.Event `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding events: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(body.Events) == 0 {
		fmt.Fprintln(out, "No events found.")
		return nil
	}

	fmt.Fprintf(out, "%-36s  %-10s  %-9s  %-9s  %-7s  %s\n", "ID", "CHANNEL", "STATUS", "INTENT", "REPLIES", "TIMESTAMP")
	for _, e := range body.Events {
		fmt.Fprintf(out, "%-36s  %-10s  %-9s  %-9s  %-7d  %s\n",
			e.ID, e.ChannelID, e.Status, e.Intent, e.Replies, e.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return nil
}
