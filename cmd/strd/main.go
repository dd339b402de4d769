package main

import (
	"fmt"
	"os"
	"strd/internal"
	"strd/internal/di"
	"strd/internal/providers"
	"strd/internal/structures"

	"github.com/spf13/pflag"
)

func main() {
	flags := &structures.CliFlags{}
	pflag.StringVarP(&flags.ConfigPath, "config", "c", "config.yaml", "path to the config file")
	pflag.BoolVarP(&flags.DebugMode, "debug", "d", false, "log at debug level")
	pflag.StringVarP(&flags.Role, "role", "r", "", "process role: foreground or monitor (overrides the config)")
	pflag.Parse()

	if err := run(flags); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(flags *structures.CliFlags) error {
	if flags.Role == "" {
		conf, err := providers.NewConfigProvider(flags)
		if err != nil {
			return err
		}
		flags.Role = conf.Role
	}

	var (
		app     *internal.App
		cleanup func()
		err     error
	)
	switch flags.Role {
	case structures.RoleForeground:
		app, cleanup, err = di.InitForeground(flags)
	case structures.RoleMonitor:
		app, cleanup, err = di.InitMonitor(flags)
	default:
		return fmt.Errorf("unknown role %q", flags.Role)
	}
	if err != nil {
		return err
	}
	defer cleanup()

	return app.Run()
}
