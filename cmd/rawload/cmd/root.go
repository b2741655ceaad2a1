package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/abworrall/rawload/pkg/rawload"
)

func NewRoot(ctx context.Context, gitsha string) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "rawload",
		Short:        "decode camera RAW (DNG) files into RGB images",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logFile, _ := cmd.Flags().GetString("log-file")
			if logFile != "" {
				log.SetOutput(&lumberjack.Logger{
					Filename:   logFile,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
				})
			} else {
				log.SetOutput(os.Stderr)
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			printCommandTree(cmd, 0)
		},
	}
	cmd.AddCommand(
		NewVersionCmd(gitsha),
		NewDecodeCmd(ctx),
		NewInfoCmd(ctx),
		NewHashCmd(),
		NewConfigCmd(),
	)

	pf := cmd.PersistentFlags()
	pf.String("log-file", "", "append logs to this file (rotated) instead of stderr")
	pf.String("config", "", "YAML config file; flags override it")
	pf.IntP("verbosity", "v", 0, "how verbose to get")

	pf.Bool("auto-bright", true, "automatic increase of brightness")
	pf.Float64("bright", 1.0, "brightness multiplier, 0.1 to 3.0")
	pf.String("highlight", "clip", "highlight mode (clip|ignore|blend|reconstruct)")
	pf.String("demosaic", "bilinear", "demosaic kernel (bilinear|gradient)")
	pf.String("develop", "none", "color development (none|wb|camera)")
	pf.String("gamma", "linear", "output transfer curve (linear|srgb|bt709)")
	pf.Int("bps", 0, "quantize output to 8 or 16 bits; 0 leaves it as float")
	pf.Bool("orient", false, "rotate/flip the output per the file's orientation tag")
	pf.Int("workers", 0, "goroutines per stage; 0 means one per CPU")
	return cmd
}

func printCommandTree(cmd *cobra.Command, indent int) {
	fmt.Println(strings.Repeat("\t", indent), cmd.Use+":", cmd.Short)
	for _, subCmd := range cmd.Commands() {
		printCommandTree(subCmd, indent+1)
	}
}

func NewVersionCmd(gitsha string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "git sha for this build",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(gitsha)
		},
	}
}

// configFromFlags starts from the --config file (or the defaults), then
// applies any flag the user actually set.
func configFromFlags(cmd *cobra.Command) (rawload.Config, error) {
	cfg := rawload.NewConfig()

	fl := cmd.Flags()
	if filename, _ := fl.GetString("config"); filename != "" {
		var err error
		if cfg, err = rawload.LoadConfig(filename); err != nil {
			return cfg, err
		}
	}

	if fl.Changed("verbosity") {
		cfg.Verbosity, _ = fl.GetInt("verbosity")
	}
	if fl.Changed("auto-bright") {
		cfg.UseAutoBright, _ = fl.GetBool("auto-bright")
	}
	if fl.Changed("bright") {
		cfg.BrightAdjustment, _ = fl.GetFloat64("bright")
	}
	if fl.Changed("highlight") {
		cfg.HighlightMode, _ = fl.GetString("highlight")
	}
	if fl.Changed("demosaic") {
		cfg.Demosaic, _ = fl.GetString("demosaic")
	}
	if fl.Changed("develop") {
		cfg.Develop, _ = fl.GetString("develop")
	}
	if fl.Changed("gamma") {
		cfg.Gamma, _ = fl.GetString("gamma")
	}
	if fl.Changed("bps") {
		cfg.OutputBPS, _ = fl.GetInt("bps")
	}
	if fl.Changed("orient") {
		cfg.Orient, _ = fl.GetBool("orient")
	}
	if fl.Changed("workers") {
		cfg.Workers, _ = fl.GetInt("workers")
	}

	return cfg, cfg.Validate()
}

func NewConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "print the effective config as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromFlags(cmd)
			if err != nil {
				return err
			}
			fmt.Print(cfg.AsYaml())
			return nil
		},
	}
}
