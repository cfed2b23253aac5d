package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"shuttle/internal/capture"
	"shuttle/internal/ingest"
	"shuttle/internal/ipc"
	"shuttle/internal/logging"
	"shuttle/internal/queue"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var capturedAt string
	var latitude float64
	var longitude float64
	var orientation string

	cmd := &cobra.Command{
		Use:   "submit <path>",
		Short: "Queue a capture file for upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			info, err := os.Stat(absPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("file does not exist: %s", absPath)
				}
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", absPath)
			}

			var capturedTime time.Time
			if capturedAt != "" {
				capturedTime, err = time.Parse(time.RFC3339, capturedAt)
				if err != nil {
					return fmt.Errorf("parse --captured-at: %w", err)
				}
			}

			latSet := cmd.Flags().Changed("latitude")
			lonSet := cmd.Flags().Changed("longitude")
			if latSet != lonSet {
				return errors.New("latitude and longitude must be provided together")
			}

			var parsedOrientation capture.Orientation
			if orientation != "" {
				parsed, ok := capture.ParseOrientation(orientation)
				if !ok {
					return fmt.Errorf("unknown orientation %q", orientation)
				}
				parsedOrientation = parsed
			}

			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				out := cmd.OutOrStdout()
				if client != nil {
					req := ipc.SubmitRequest{
						Path:        absPath,
						CapturedAt:  capturedAt,
						Orientation: orientation,
					}
					if latSet {
						req.Latitude = &latitude
						req.Longitude = &longitude
					}
					resp, err := client.Submit(req)
					if err != nil {
						return err
					}
					printSubmitResult(out, absPath, resp.MediaID, resp.Accepted, resp.SizeBytes, resp.Fingerprint)
					return nil
				}

				receipt, err := submitOffline(cmd.Context(), ctx, store, absPath, capture.Metadata{
					CapturedAt:  capturedTime,
					Location:    submitLocation(latSet, latitude, longitude),
					Orientation: parsedOrientation,
				})
				if err != nil {
					return err
				}
				printSubmitResult(out, absPath, receipt.MediaID, receipt.Accepted, receipt.Size, receipt.Fingerprint)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&capturedAt, "captured-at", "", "Capture timestamp (RFC 3339); defaults to sidecar metadata, then file mtime")
	cmd.Flags().Float64Var(&latitude, "latitude", 0, "Capture latitude in decimal degrees")
	cmd.Flags().Float64Var(&longitude, "longitude", 0, "Capture longitude in decimal degrees")
	cmd.Flags().StringVar(&orientation, "orientation", "", "Capture orientation (portrait, portrait_upside_down, landscape_left, landscape_right)")
	return cmd
}

func submitLocation(set bool, latitude, longitude float64) *capture.Location {
	if !set {
		return nil
	}
	return &capture.Location{Latitude: latitude, Longitude: longitude}
}

// submitOffline admits the capture straight into the queue database, the
// same path the daemon takes minus the live worker.
func submitOffline(ctx context.Context, cmdCtx *commandContext, store *queue.Store, path string, meta capture.Metadata) (ingest.Receipt, error) {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return ingest.Receipt{}, err
	}
	spool, err := capture.OpenSpool(cfg)
	if err != nil {
		return ingest.Receipt{}, fmt.Errorf("open spool: %w", err)
	}

	gate := ingest.NewGate(cfg, spool, storeAdmitter{store: store}, logging.NewNop())
	meta = ingest.ResolveSubmitMetadata(path, meta)
	return gate.SubmitFile(ctx, path, meta)
}

// storeAdmitter adapts the queue store to the gate's admission surface,
// reporting duplicates as rejections instead of errors.
type storeAdmitter struct {
	store *queue.Store
}

func (a storeAdmitter) Enqueue(ctx context.Context, item queue.Item) (bool, error) {
	_, err := a.store.Insert(ctx, item)
	if errors.Is(err, queue.ErrDuplicateMediaID) || errors.Is(err, queue.ErrDuplicateFingerprint) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func printSubmitResult(out io.Writer, path, mediaID string, accepted bool, size int64, fingerprint string) {
	if accepted {
		fmt.Fprintf(out, "Queued %s as %s (%s)\n", filepath.Base(path), mediaID, formatSize(size))
		return
	}
	fmt.Fprintf(out, "Duplicate capture ignored (fingerprint %s)\n", formatFingerprint(fingerprint))
}
