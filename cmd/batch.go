package cmd

import (
	"bytes"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/ruget/internal/errcode"
	"github.com/tanq16/ruget/internal/utils"
	"gopkg.in/yaml.v3"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE] [OPTIONS]",
		Short: "Process multiple downloads from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(1); err != nil {
				return configFailure(cfg, err)
			}
			batchFile, err := readBatchFile(args[0])
			if err != nil {
				return configFailure(cfg, err)
			}
			jobs, err := buildJobsFromBatch(batchFile, utils.JobOptions{
				OutputDir: cfg.OutputDir,
				Headers:   utils.ParseHeaderArgs(cfg.Headers),
				Resume:    cfg.Resume,
				Force:     cfg.Force,
			})
			if err != nil {
				return configFailure(cfg, err)
			}
			return runJobs(cmd.Context(), cfg, jobs)
		},
	}
	return cmd
}

func readBatchFile(path string) (utils.BatchFile, error) {
	var batchFile utils.BatchFile
	data, err := os.ReadFile(path)
	if err != nil {
		return batchFile, errcode.FromFS(err, errcode.E105).With("path", path)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&batchFile); err != nil {
		return batchFile, errcode.Wrap(errcode.E501, err).With("path", path)
	}
	return batchFile, nil
}

// buildJobsFromBatch turns batch entries into jobs. Entry headers override
// the command-line headers of the same name.
func buildJobsFromBatch(batchFile utils.BatchFile, defaults utils.JobOptions) ([]utils.Job, error) {
	if len(batchFile.Jobs) == 0 {
		return nil, errcode.New(errcode.E303, "no jobs found in the batch file")
	}
	jobs := make([]utils.Job, 0, len(batchFile.Jobs))
	for i, entry := range batchFile.Jobs {
		if entry.Link == "" {
			return nil, errcode.Newf(errcode.E303, "batch entry %d has no link", i+1)
		}
		if entry.Size < 0 {
			return nil, errcode.Newf(errcode.E304, "batch entry %d has a negative size", i+1)
		}
		opts := defaults
		opts.Output = entry.Output
		opts.Size = entry.Size
		opts.Headers = make(map[string]string, len(defaults.Headers)+len(entry.Headers))
		for k, v := range defaults.Headers {
			opts.Headers[k] = v
		}
		for k, v := range entry.Headers {
			opts.Headers[k] = v
		}
		jobs = append(jobs, utils.NewJob(entry.Link, opts))
	}
	return jobs, nil
}
