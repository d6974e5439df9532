package main

import (
	"context"

	"github.com/reacture/engine/internal/config"
	"github.com/reacture/engine/internal/server"
	"github.com/spf13/pflag"
)

var serveKeys = map[string]string{
	"server.address": "address",
	"server.dataDir": "data-dir",
	"server.secret":  "secret",
}

func serveCommand(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	configDir := commonFlags(fs)
	fs.String("address", ":5000", "listen address")
	fs.String("data-dir", "./datasets", "directory holding exported datasets")
	fs.String("secret", "", "shared secret required for uploads and streams")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := setup(fs, *configDir, serveKeys)
	if err != nil {
		return err
	}
	defer rt.Close()

	return server.New(config.GetServerConfig(), rt.logger).ListenAndServe(ctx)
}
