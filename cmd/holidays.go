package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"quickslot/internal/config"
)

func holidaysCommand() *cli.Command {
	return &cli.Command{
		Name:  "holidays",
		Usage: "List the holidays skipped when searching business days.",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "year", Usage: "Year to list (defaults to the current year)."},
		},
		Action: func(c *cli.Context) error {
			store, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			cfg, err := store.Config()
			if err != nil {
				return err
			}
			cal, err := cfg.Calendar()
			if err != nil {
				return err
			}

			year := c.Int("year")
			if year == 0 {
				year = time.Now().Year()
			}
			for _, h := range cal.Holidays(year) {
				fmt.Printf("%s  %-9s  %s\n", h.Date, h.Date.Weekday(), h.Name)
			}
			return nil
		},
	}
}
