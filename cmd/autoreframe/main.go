package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/keagan/autoreframe/internal/config"
	"github.com/keagan/autoreframe/internal/logging"
	"github.com/keagan/autoreframe/internal/pipeline"
	"github.com/keagan/autoreframe/pkg/util"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool

	analyzeOutput   string
	analyzeAspect   string
	analyzeInterval float64

	renderOutput string
	renderClips  []string
	renderWidth  int
	renderHeight int

	configFormat string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "cancelled")
			os.Exit(130)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "autoreframe",
	Short: "autoreframe - speaker-tracking vertical reframing",
	Long:  "Analyze a landscape video, follow whoever is speaking and render a vertical cut.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./autoreframe.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "project file (default: <input>.reframe.json)")
	analyzeCmd.Flags().StringVar(&analyzeAspect, "aspect", "", "target aspect ratio, e.g. 9:16")
	analyzeCmd.Flags().Float64Var(&analyzeInterval, "interval", 0, "seconds between analyzed frames")

	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "output video (default: <input>.vertical.mp4)")
	renderCmd.Flags().StringSliceVar(&renderClips, "clip", nil, "render only these clip ids")
	renderCmd.Flags().IntVar(&renderWidth, "width", 0, "output width")
	renderCmd.Flags().IntVar(&renderHeight, "height", 0, "output height")

	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "yaml or toml")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(clipsCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [input video]",
	Short: "Analyze a video and write a reframe project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		pipe, err := pipeline.New(log.Logger, cfg)
		if err != nil {
			return err
		}

		bar := newStageBar(os.Stderr)
		project, err := pipe.Analyze(ctx, args[0], pipeline.AnalyzeOptions{
			AspectRatio: analyzeAspect,
			Interval:    seconds(analyzeInterval),
			Progress:    bar.Update,
		})
		bar.Done()
		if err != nil {
			return err
		}

		out := analyzeOutput
		if out == "" {
			out = util.ReplaceExt(args[0], ".reframe.json")
		}
		if err := pipeline.SaveProject(ctx, out, project); err != nil {
			return err
		}

		fmt.Println(renderClipTable(project))
		log.Info().
			Str("project", out).
			Int("clips", len(project.Clips)).
			Msg("analysis complete")
		return nil
	},
}

var renderCmd = &cobra.Command{
	Use:   "render [project file]",
	Short: "Render the vertical video described by a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		project, err := pipeline.LoadProject(ctx, args[0])
		if err != nil {
			return err
		}

		pipe, err := pipeline.New(log.Logger, cfg)
		if err != nil {
			return err
		}

		out := renderOutput
		if out == "" {
			out = util.ReplaceExt(project.Source.Path, ".vertical.mp4")
		}

		bar := newPercentBar(os.Stderr, "rendering")
		path, err := pipe.Render(ctx, project, pipeline.RenderOptions{
			OutputPath: out,
			Width:      renderWidth,
			Height:     renderHeight,
			ClipIDs:    renderClips,
			Progress:   bar.Set,
		})
		bar.Done()
		if err != nil {
			return err
		}

		log.Info().Str("output", path).Msg("render complete")
		return nil
	},
}

var clipsCmd = &cobra.Command{
	Use:   "clips [project file]",
	Short: "List the clips of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := pipeline.LoadProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(renderClipTable(project))
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit [project file] [op]...",
	Short: "Apply clip edits to a project",
	Long: `Apply clip edits in order and save the project. Each op is one argument:

  "resize <id> <start> <end>"   change a clip's time range
  "move <id> <start>"           shift a clip keeping its length
  "create <start> <end> <x> <y>" add a crop clip
  "reframe <id> <x> <y>"        change a clip's crop position
  "zoom <id> <scale>"           zoom into a clip's crop window (1 to 4, 1 resets)
  "letterbox <id>"              switch a clip to full-frame letterboxing
  "delete <id>"                 remove a clip
  "undo" / "redo"

Times accept seconds or HH:MM:SS.mmm. Clip ids may be abbreviated to a unique prefix.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		project, err := pipeline.LoadProject(ctx, args[0])
		if err != nil {
			return err
		}

		if err := applyEdits(project, args[1:]); err != nil {
			return err
		}
		if err := pipeline.SaveProject(ctx, args[0], project); err != nil {
			return err
		}

		fmt.Println(renderClipTable(project))
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.FromContext(cmd.Context()).Encode(configFormat)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}
