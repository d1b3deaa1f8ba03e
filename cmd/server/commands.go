package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"imagedetect/internal/app"
	"imagedetect/internal/config"
	"imagedetect/internal/logger"
	"imagedetect/internal/repository"
	"imagedetect/internal/repository/gormdb"
	"imagedetect/internal/services/ai"
	"imagedetect/internal/services/detection"
)

// RootCommand creates the imagedetect CLI. Without a sub-command it serves
// HTTP.
func RootCommand() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:           "imagedetect",
		Short:         "Object detection HTTP service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, v)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "optional YAML config file")
	rootCmd.PersistentFlags().Int("port", 8000, "HTTP listen port")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			v.SetConfigFile(path)
		}
		return nil
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the detection API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, v)
		},
	}

	rootCmd.AddCommand(serveCmd, detectCommand(v))
	return rootCmd
}

func setup(v *viper.Viper) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func runServe(cmd *cobra.Command, v *viper.Viper) error {
	cfg, log, err := setup(v)
	if err != nil {
		return err
	}
	defer log.Close()

	application, err := app.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Error("Failed to release resources: %v", err)
		}
	}()

	return application.Run(cmd.Context())
}

func detectCommand(v *viper.Viper) *cobra.Command {
	var (
		outPath string
		noSave  bool
	)

	cmd := &cobra.Command{
		Use:   "detect <image>",
		Short: "Run detection on a local image file and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(v)
			if err != nil {
				return err
			}
			defer log.Close()

			model, err := app.LoadModel(cfg, log)
			if err != nil {
				return err
			}
			handle := ai.NewHandle(model)
			defer handle.Close()

			var repo repository.DetectionRepository
			if !noSave {
				store, err := gormdb.Open(cfg, log)
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.InitializeSchema(cmd.Context()); err != nil {
					log.Error("Failed to initialize detection schema: %v", err)
				}
				repo = store
			}

			upload, err := readUpload(args[0])
			if err != nil {
				return err
			}

			res, err := detection.NewService(handle, repo, log).Detect(cmd.Context(), upload)
			if err != nil {
				return err
			}

			if outPath != "" {
				raw, err := base64.StdEncoding.DecodeString(res.AnnotatedImage)
				if err != nil {
					return fmt.Errorf("failed to decode annotated image: %w", err)
				}
				if err := os.WriteFile(outPath, raw, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", outPath, err)
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Filename     string `json:"filename"`
				Detections   any    `json:"detections"`
				TotalObjects int    `json:"total_objects"`
				Timestamp    string `json:"timestamp"`
				RecordID     uint   `json:"record_id,omitempty"`
			}{res.Filename, res.Detections, res.TotalObjects, res.Timestamp, res.RecordID})
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the annotated JPEG to this path")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store a detection record")
	return cmd
}

// readUpload reads path and derives the content type from its extension,
// falling back to content sniffing.
func readUpload(path string) (detection.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return detection.Upload{}, fmt.Errorf("failed to read image: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return detection.Upload{
		Filename:    filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}, nil
}
