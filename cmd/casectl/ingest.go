package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/OFFIS-RIT/casegraph/internal/bootstrap"
	"github.com/OFFIS-RIT/casegraph/internal/config"
	"github.com/OFFIS-RIT/casegraph/internal/storage"
	"github.com/OFFIS-RIT/casegraph/pkg/ingest"
	"github.com/OFFIS-RIT/casegraph/pkg/loader"
	fileio "github.com/OFFIS-RIT/casegraph/pkg/loader/io"
	loaders3 "github.com/OFFIS-RIT/casegraph/pkg/loader/s3"
	"github.com/OFFIS-RIT/casegraph/pkg/logger"
)

func ingestCmd() *cobra.Command {
	var (
		s3Prefix string
		fileType string
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "ingest [paths...]",
		Short: "Extract case records from files and publish them",
		Long: `Extract case records from local files, or from archived uploads in the
configured S3 bucket when --s3 is set, and run them through the ingestion
pipeline. The result is printed as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if s3Prefix == "" && len(args) == 0 {
				return fmt.Errorf("no input files given")
			}

			ctx, stop, cfg := setup(cmd)
			defer stop()

			var files []loader.SourceFile
			if s3Prefix != "" {
				var err error
				files, err = archivedFiles(ctx, cfg, s3Prefix, fileType)
				if err != nil {
					return err
				}
			} else {
				l := fileio.NewIOFileLoader()
				for i, path := range args {
					files = append(files, loader.NewSourceFile(loader.NewSourceFileParams{
						ID:         fmt.Sprintf("local-%d", i),
						FilePath:   path,
						FormatHint: fileType,
						Loader:     l,
					}))
				}
			}

			bus, err := bootstrap.OpenBus(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connect to message bus: %w", err)
			}
			defer bus.Close()

			normalizer := bootstrap.NewNormalizer(cfg)
			svc, err := ingest.NewService(ingest.NewServiceParams{
				Pipeline:      bootstrap.NewPipeline(cfg, normalizer, bus.Publisher),
				Normalizer:    normalizer,
				ParallelFiles: parallel,
			})
			if err != nil {
				return err
			}

			result := svc.ProcessBulk(ctx, files)
			logger.Info("[Ingest] Done",
				"files", result.FilesProcessed,
				"failed", result.FilesFailed,
				"accepted", result.TotalAccepted,
			)
			return printJSON(cmd, bulkSummary(result))
		},
	}

	cmd.Flags().StringVar(&s3Prefix, "s3", "", "Ingest every object under this key prefix in the configured bucket")
	cmd.Flags().StringVar(&fileType, "type", "", "Format hint applied to every file (CSV, EXCEL, PDF, JSON, XML)")
	cmd.Flags().IntVar(&parallel, "parallel", ingest.DefaultParallelFiles, "Number of files processed concurrently")

	return cmd
}

func archivedFiles(ctx context.Context, cfg *config.Config, prefix, fileType string) ([]loader.SourceFile, error) {
	if !cfg.ArchiveEnabled() {
		return nil, fmt.Errorf("--s3 requires AWS_BUCKET to be set")
	}

	client, err := storage.NewS3Client(ctx, cfg.S3)
	if err != nil {
		return nil, err
	}
	keys, err := storage.NewArchive(client, cfg.S3.Bucket).ListFilesWithPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	l := loaders3.NewS3FileLoaderWithClient(cfg.S3.Bucket, client)
	files := make([]loader.SourceFile, 0, len(keys))
	for _, key := range keys {
		files = append(files, loader.NewSourceFile(loader.NewSourceFileParams{
			ID:         filepath.Base(key),
			FilePath:   key,
			FormatHint: fileType,
			Loader:     l,
		}))
	}
	return files, nil
}

type fileSummary struct {
	FileName string   `json:"fileName"`
	Format   string   `json:"format,omitempty"`
	Accepted int      `json:"casesAccepted"`
	Failed   int      `json:"casesFailed"`
	Skipped  int      `json:"casesSkipped"`
	CaseIDs  []string `json:"caseIds,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type summary struct {
	FilesProcessed int           `json:"filesProcessed"`
	FilesFailed    int           `json:"filesFailed"`
	TotalProcessed int           `json:"totalCasesProcessed"`
	TotalAccepted  int           `json:"totalCasesAccepted"`
	Files          []fileSummary `json:"files"`
}

func bulkSummary(result ingest.BulkResult) summary {
	out := summary{
		FilesProcessed: result.FilesProcessed,
		FilesFailed:    result.FilesFailed,
		TotalProcessed: result.TotalProcessed,
		TotalAccepted:  result.TotalAccepted,
	}
	for i, f := range result.Files {
		fs := fileSummary{
			FileName: f.FileName,
			Format:   string(f.Format),
			Accepted: f.Accepted,
			Failed:   f.Failed,
			Skipped:  f.Skipped,
			CaseIDs:  f.CaseIDs,
		}
		if err, ok := result.Errors[i]; ok {
			fs.Error = err.Error()
		}
		out.Files = append(out.Files, fs)
	}
	return out
}
