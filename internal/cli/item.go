package cli

import (
	"net/url"

	"github.com/spf13/cobra"

	"github.com/mcoot/estimategame/internal/api/response"
)

func newItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Item catalog commands",
	}

	cmd.AddCommand(newItemGetCmd())

	return cmd
}

func newItemGetCmd() *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "get <item-id>",
		Short: "Show an item in the given language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/items/" + url.PathEscape(args[0])
			if lang != "" {
				path += "?lang=" + url.QueryEscape(lang)
			}

			var result response.Item
			if err := client.Get(cmd.Context(), path, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "", "Language tag, e.g. en, fr, es-MX")

	return cmd
}
