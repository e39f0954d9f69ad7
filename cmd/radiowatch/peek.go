package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/edward-ap/radiowatch/internal/retriever"
)

var peekCmd = &cobra.Command{
	Use:   "peek <station>",
	Short: "Fetch the station's current track once and print it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cat, err := loadCatalog(cfg)
		if err != nil {
			return err
		}
		st, ok := cat.Lookup(args[0])
		if !ok {
			return errors.Errorf("unknown station %q", args[0])
		}

		// no media engine here, so backend-tag stations report unknown
		registry := retriever.NewRegistry(nil, nil, slogPrintf{logger})
		src := registry.Resolve(st)

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.FetchTimeout())
		defer cancel()
		snap, err := src.Fetch(ctx, st)
		if err != nil {
			return errors.Wrapf(err, "fetch metadata for %s", st.Name)
		}
		fmt.Println(snap.String())
		return nil
	},
}
