package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"shelfmark/internal/api"
)

func newEntitiesCommand(ctx *commandContext) *cobra.Command {
	var types []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List the cataloged books, movies, and TV shows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			entities, err := client.ListEntities(cmd.Context(), ctx.userID(), types...)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, api.EntityListResponse{Entities: entities})
			}
			out := cmd.OutOrStdout()
			if len(entities) == 0 {
				fmt.Fprintln(out, "No entities cataloged yet.")
				return nil
			}
			fmt.Fprintln(out, renderTable(entityColumns, entityRows(entities)))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&types, "type", nil, "Filter by entity type: book, movie, tv_show (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func entityRows(entities []api.Entity) [][]string {
	rows := make([][]string, 0, len(entities))
	for _, entity := range entities {
		rows = append(rows, []string{
			strconv.FormatInt(entity.ID, 10),
			entity.Type,
			truncate(entity.Name, 50),
			strconv.Itoa(entity.BookmarkCount),
		})
	}
	return rows
}
