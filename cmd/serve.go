package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yungbote/artforge-backend/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the generation API, the SSE event stream and /metrics.

With COLLECTION_AUTORUN=true the collection is generated in the background
until COLLECTION_SIZE items exist.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return a.Run(ctx)
		})
	},
}
