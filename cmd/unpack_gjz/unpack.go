package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/granular-oss/geostream"
)

type options struct {
	reverse bool
	pretty  bool
	verbose bool
	out     string
	sel     string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "unpack_gjz GJZ...",
		Short:         "Unpack one or more GeoStream compressed files to GeoJSON",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args, opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.reverse, "reverse", "r", false, "reverse feature order in collection")
	cmd.Flags().BoolVarP(&opts.pretty, "pretty", "p", false, "make the output JSON pretty")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "print unpack information to console")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "path to the GeoJSON output directory or .json file for single input file")
	cmd.Flags().StringVarP(&opts.sel, "select", "s", "", "JSON string to select Features with matching properties to write to output")
	return cmd
}

func run(args []string, opts *options) error {
	log := zap.NewNop().Sugar()
	if opts.verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		log = logger.Sugar()
	}

	var filter geojson.Properties
	if opts.sel != "" {
		if err := json.Unmarshal([]byte(opts.sel), &filter); err != nil {
			return fmt.Errorf("invalid select text, must be valid JSON string: %s: %w", opts.sel, err)
		}
	}

	inputs := expandInputs(args)
	outDir, singleOut, err := resolveOutput(opts.out, inputs)
	if err != nil {
		return err
	}

	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil || info.IsDir() {
			fmt.Printf("Skipped: %s, which is not a file or does not exist\n", input)
			continue
		}
		if filepath.Ext(input) != ".gjz" {
			fmt.Printf("Skipped: %s, which does not have the name extension: .gjz\n", input)
			continue
		}

		output := singleOut
		if output == "" {
			output = outputPath(outDir, input)
		}
		log.Infof("unpacking %s into %s", input, output)

		count, err := unpackFile(input, output, filter, opts)
		if err != nil {
			fmt.Printf("...failed to unpack %s, error: %v\n", input, err)
			continue
		}
		if filter != nil {
			log.Infof("...unpacked %d features, selected by: %s", count, opts.sel)
		} else {
			log.Infof("...unpacked %d features, selected all", count)
		}
	}
	return nil
}

// expandInputs treats every argument as a file glob; arguments that match
// nothing pass through so they can be reported as skipped.
func expandInputs(args []string) []string {
	var inputs []string
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil || len(matches) == 0 {
			inputs = append(inputs, arg)
			continue
		}
		inputs = append(inputs, matches...)
	}
	return inputs
}

// resolveOutput validates the -o flag. A .json path means one named
// output file and requires exactly one input file; anything else is an
// output directory, created if missing. Returns (dir, singleFile, err)
// where exactly one of dir/singleFile is set when -o was given.
func resolveOutput(out string, inputs []string) (string, string, error) {
	if out == "" {
		return "", "", nil
	}
	if strings.HasSuffix(out, ".json") {
		if len(inputs) != 1 {
			return "", "", fmt.Errorf("output path must be a directory for multiple input files, not: %s", out)
		}
		if info, err := os.Stat(inputs[0]); err != nil || info.IsDir() {
			return "", "", fmt.Errorf("output path must be a directory for multiple input files, not: %s", out)
		}
		return "", out, nil
	}
	info, err := os.Stat(out)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(out, 0o755); err != nil {
			return "", "", fmt.Errorf("un-writeable output path: %s: %w", out, err)
		}
	case err != nil:
		return "", "", err
	case !info.IsDir():
		return "", "", fmt.Errorf("existing output path must be a directory: %s", out)
	}
	return out, "", nil
}

// outputPath derives the .json output file for an input, next to the
// input unless an output directory was given.
func outputPath(outDir, input string) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if outDir == "" {
		outDir = filepath.Dir(input)
	}
	return filepath.Join(outDir, stem+".json")
}

// unpackFile reads one stream and writes the selected features as a
// GeoJSON FeatureCollection, returning the number of features written.
func unpackFile(input, output string, filter geojson.Properties, opts *options) (int, error) {
	f, err := os.Open(input)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dir := geostream.Forward
	if opts.reverse {
		dir = geostream.Reverse
	}
	reader, err := geostream.NewReader(f, dir)
	if err != nil {
		return 0, err
	}

	fc := &geostream.FeatureCollection{
		Properties: reader.Properties(),
		SRID:       reader.SRID(),
	}
	for {
		feature, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		if filter != nil && !feature.MatchesProperties(filter) {
			continue
		}
		fc.Features = append(fc.Features, feature)
	}

	data, err := renderCollection(fc, opts.pretty)
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return 0, err
	}
	return len(fc.Features), nil
}

func renderCollection(fc *geostream.FeatureCollection, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(fc, "", "    ")
	}
	return json.Marshal(fc)
}
