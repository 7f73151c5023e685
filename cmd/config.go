package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"quickslot/internal/config"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show or change saved settings.",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective settings.",
				Action: func(c *cli.Context) error {
					store, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					if file := store.File(); file != "" {
						fmt.Printf("# %s\n", file)
					}
					settings := store.Settings()
					keys := make([]string, 0, len(settings))
					for k := range settings {
						keys = append(keys, k)
					}
					slices.Sort(keys)
					for _, k := range keys {
						fmt.Printf("%s: %v\n", k, settings[k])
					}
					return nil
				},
			},
			{
				Name:      "set",
				Usage:     "Change one setting and save it.",
				ArgsUsage: "<key> <value>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return fmt.Errorf("usage: quickslot config set <key> <value>")
					}
					store, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					key, raw := c.Args().Get(0), c.Args().Get(1)
					if err := store.Set(key, parseSetting(raw)); err != nil {
						return err
					}
					if _, err := store.Config(); err != nil {
						return fmt.Errorf("setting not saved: %w", err)
					}
					if err := store.Save(c.String("config")); err != nil {
						return err
					}
					fmt.Printf("%s = %s\n", key, raw)
					return nil
				},
			},
		},
	}
}

// parseSetting turns a command-line value into the type viper should store.
// Comma-separated values become lists.
func parseSetting(raw string) any {
	if i, err := strconv.Atoi(raw); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if strings.Contains(raw, ",") {
		var items []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items
	}
	return raw
}
