package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rwth-i6/rasr-sub008/language"
)

var lmbuildOpts struct {
	order  int
	output string
}

var lmbuildCmd = &cobra.Command{
	Use:   "lmbuild [flags] [TEXT...]",
	Short: "Build an ARPA n-gram language model from tokenized text",
	Long: `Builds a Witten-Bell smoothed ARPA model for the history scorer.
Input is one sentence per line, words separated by spaces. Without
arguments the text is read from stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b := language.NewBuilder(lmbuildOpts.order)
		sentences := 0
		if len(args) == 0 {
			n, err := readSentences(b, cmd.InOrStdin())
			if err != nil {
				return err
			}
			sentences += n
		}
		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			n, err := readSentences(b, f)
			f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			sentences += n
		}

		w := cmd.OutOrStdout()
		if lmbuildOpts.output != "" {
			f, err := os.Create(lmbuildOpts.output)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		if err := b.Build().WriteARPA(w); err != nil {
			return fmt.Errorf("write ARPA: %w", err)
		}
		logrus.WithFields(logrus.Fields{
			"order":     lmbuildOpts.order,
			"sentences": sentences,
		}).Info("built language model")
		return nil
	},
}

func init() {
	lmbuildCmd.Flags().IntVar(&lmbuildOpts.order, "order", 2, "n-gram order")
	lmbuildCmd.Flags().StringVarP(&lmbuildOpts.output, "output", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(lmbuildCmd)
}

func readSentences(b *language.Builder, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	count := 0
	for scanner.Scan() {
		words := strings.Fields(scanner.Text())
		if len(words) == 0 {
			continue
		}
		b.AddSentence(words)
		count++
	}
	return count, scanner.Err()
}
