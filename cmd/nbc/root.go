package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	classifier "github.com/samuel/go-textclassifier"
	"github.com/samuel/go-textclassifier/internal/config"
	"github.com/samuel/go-textclassifier/internal/dataset"
)

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "nbc",
		Short: "Naive Bayes text classifier",
		Long: `nbc trains a multinomial naive Bayes model on labelled text and
classifies new text with it.

Training data is one example per line: category<TAB>text.`,
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Configuration file path")
	flags.StringVarP(&opts.modelPath, "model", "m", "", "Model file path (overrides config)")
	flags.StringVar(&opts.backend, "backend", "", "Store backend: memory, sqlite or redis (overrides config)")
	flags.IntVarP(&opts.ngram, "ngram", "n", 0, "N-gram size (overrides config)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output")

	root.AddCommand(
		newTrainCmd(opts),
		newClassifyCmd(opts),
		newEvaluateCmd(opts),
		newCrossValCmd(opts),
		newTermsCmd(opts),
		newInfoCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newConfigCmd(),
	)
	return root
}

// withApp opens the app for the duration of fn
func withApp(opts *options, fn func(a *app) error) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newTrainCmd(opts *options) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "train <data-file>...",
		Short: "Train the model on labelled examples",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				if !reset {
					if err := a.loadModel(); err != nil {
						return err
					}
				}
				var n int
				for _, path := range args {
					examples, err := dataset.ReadFile(path)
					if err != nil {
						return err
					}
					for _, ex := range examples {
						if err := a.bc.Train(ex.Text, ex.Category); err != nil {
							return fmt.Errorf("%s: %w", path, err)
						}
					}
					a.logger.Debug("trained file", zap.String("path", path), zap.Int("examples", len(examples)))
					n += len(examples)
				}
				if err := a.saveModel(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Trained on %d examples\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&reset, "reset", "r", false, "Start from an empty model")
	return cmd
}

func newClassifyCmd(opts *options) *cobra.Command {
	var showScores bool
	cmd := &cobra.Command{
		Use:   "classify <text>...",
		Short: "Classify text with the trained model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				if err := a.loadModel(); err != nil {
					return err
				}
				text := strings.Join(args, " ")
				out := cmd.OutOrStdout()
				if !showScores {
					cat, err := a.bc.Classify(text)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, cat)
					return nil
				}
				scores, err := a.bc.Scores(text)
				if err != nil {
					return err
				}
				for _, s := range scores {
					fmt.Fprintf(out, "%-20s %12.4f\n", s.Category, s.Score)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&showScores, "scores", "s", false, "Print the log score of every category")
	return cmd
}

func newEvaluateCmd(opts *options) *cobra.Command {
	var misclassified string
	cmd := &cobra.Command{
		Use:   "evaluate <data-file>",
		Short: "Report accuracy, precision, recall and F1 on labelled examples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				if err := a.loadModel(); err != nil {
					return err
				}
				examples, err := dataset.ReadFile(args[0])
				if err != nil {
					return err
				}
				acc, err := classifier.Evaluate(a.bc, examples)
				if err != nil {
					return err
				}
				m, err := classifier.PrecisionRecallF1(a.bc, examples)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Examples:  %d\n", len(examples))
				fmt.Fprintf(out, "Accuracy:  %.4f\n", acc)
				fmt.Fprintf(out, "Precision: %.4f\n", m.Precision)
				fmt.Fprintf(out, "Recall:    %.4f\n", m.Recall)
				fmt.Fprintf(out, "F1:        %.4f\n", m.F1)
				if misclassified == "" {
					return nil
				}
				return writeMisclassified(a, misclassified, examples)
			})
		},
	}
	cmd.Flags().StringVar(&misclassified, "misclassified", "", "Write the misclassified examples to this file")
	return cmd
}

// writeMisclassified writes every example the model gets wrong to path, with
// its expected category, in the training data format
func writeMisclassified(a *app, path string, examples []classifier.Example) error {
	var wrong []classifier.Example
	for _, ex := range examples {
		got, err := a.bc.Classify(ex.Text)
		if err != nil {
			return err
		}
		if got != ex.Category {
			wrong = append(wrong, ex)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := dataset.Write(f, wrong); err != nil {
		f.Close()
		return err
	}
	a.logger.Debug("wrote misclassified examples", zap.String("path", path), zap.Int("examples", len(wrong)))
	return f.Close()
}

func newCrossValCmd(opts *options) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "crossval <data-file>",
		Short: "Estimate accuracy with k-fold cross-validation",
		Long: `crossval splits the examples into k contiguous folds and reports the
mean accuracy. Examples left over after the last full fold are not used.
The stored model is not read or changed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				examples, err := dataset.ReadFile(args[0])
				if err != nil {
					return err
				}
				acc, err := a.bc.CrossValidate(examples, k)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d-fold accuracy: %.4f\n", k, acc)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&k, "folds", "k", 5, "Number of folds")
	return cmd
}

func newTermsCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "terms [category]...",
		Short: "List the most important terms per category by tf-idf",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				if a.persistent() {
					return fmt.Errorf("term index is only kept with the %s backend, not %s",
						config.BackendMemory, a.cfg.Store.Backend)
				}
				if a.bc.Index == nil {
					return fmt.Errorf("term index is disabled (model.term_index)")
				}
				if err := a.loadModel(); err != nil {
					return err
				}
				cats := args
				if len(cats) == 0 {
					var err error
					if cats, err = a.bc.Store().Categories(); err != nil {
						return err
					}
				}
				out := cmd.OutOrStdout()
				for _, cat := range cats {
					fmt.Fprintf(out, "%s:\n", cat)
					for i, tw := range a.bc.Index.TopTerms(cat, limit) {
						fmt.Fprintf(out, "  %2d. %-20s %.4f\n", i+1, tw.Term, tw.Weight)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "Terms per category (0 for all)")
	return cmd
}

func newInfoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show model statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				if err := a.loadModel(); err != nil {
					return err
				}
				info, err := a.bc.Info()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Backend:    %s\n", a.cfg.Store.Backend)
				fmt.Fprintf(out, "N-gram:     %d\n", a.pp.NGram())
				fmt.Fprintf(out, "Vocabulary: %d\n", info.VocabularySize)
				fmt.Fprintf(out, "Categories: %d\n", len(info.Categories))
				for _, c := range info.Categories {
					fmt.Fprintf(out, "  %-20s documents=%d tokens=%d words=%d\n", c.Name, c.Documents, c.Total, c.Words)
				}
				return nil
			})
		},
	}
}

func newExportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write the model as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				if err := a.loadModel(); err != nil {
					return err
				}
				return a.bc.SaveModelFile(args[0])
			})
		},
	}
}

func newImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the model with a JSON model file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				if err := a.bc.LoadModelFile(args[0]); err != nil {
					return err
				}
				return a.saveModel()
			})
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "nbc.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
			}
			if err := config.DefaultConfig().Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
