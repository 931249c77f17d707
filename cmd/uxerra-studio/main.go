// Package main UXerra Studio API
//
// @title           UXerra Studio API
// @version         1.0
// @description     API платформы UXerra Studio: аккаунты, подписки, брендинг, генерация контента и рассылка

// @contact.name   UXerra Studio
// @contact.url    https://uxerra.pro
// @contact.email  support@uxerra.pro

// @host      localhost:4001
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey APIKeyAuth
// @in header
// @name X-API-Key
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version версия сборки, задается через -ldflags.
var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "uxerra-studio",
		Short:   "UXerra Studio API server",
		Version: Version,
		// Без подкоманды запускается сервер.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
