package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/youmna-rabie/line-assistant/internal/app"
	"github.com/youmna-rabie/line-assistant/internal/router"
	"github.com/youmna-rabie/line-assistant/internal/types"
)

func init() {
	rootCmd.AddCommand(askCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Run one message through the assistant and print the replies as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE:  ask,
}

type askResult struct {
	Intent   router.Intent   `json:"intent"`
	Messages []types.Message `json:"messages"`
}

func ask(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(cmd.Context(), cfg, newLogger(cfg.Logging))
	if err != nil {
		return err
	}
	defer a.Close()

	intent, msgs := a.Router.Respond(cmd.Context(), strings.Join(args, " "))
	if msgs == nil {
		msgs = []types.Message{}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(askResult{Intent: intent, Messages: msgs})
}
