package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/schollz/progressbar/v3"

	"github.com/nguyengg/streamzip"
	"github.com/nguyengg/streamzip/internal"
	"github.com/nguyengg/streamzip/internal/s3download"
)

var opts struct {
	Profile        string `short:"p" long:"profile" description:"override AWS_PROFILE if given"`
	Bucket         string `long:"bucket" description:"S3 bucket to download the archive from"`
	Key            string `long:"key" description:"S3 key of the archive to download"`
	Out            string `short:"o" long:"out" description:"directory to extract into" default:"."`
	MaxConcurrency int    `short:"P" long:"max-concurrency" description:"goroutines used for ranged S3 downloads" default:"5"`
	Args           struct {
		File flags.Filename `positional-arg-name:"file" description:"local ZIP file to extract; use - for stdin; omit when using --bucket/--key"`
	} `positional-args:"yes"`
}

func main() {
	p := flags.NewParser(&opts, flags.Default)
	if _, err := p.Parse(); err != nil {
		exit(err)
		return
	}

	if opts.Profile != "" {
		if err := os.Setenv("AWS_PROFILE", opts.Profile); err != nil {
			exit(fmt.Errorf("set AWS_PROFILE error: %w", err))
			return
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	exit(run(ctx))
}

func run(ctx context.Context) error {
	src, name, err := openSource(ctx)
	if err != nil {
		return err
	}
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}

	ctx = internal.WithPrefixLogger(ctx, internal.Prefix(0, 1, flags.Filename(name)))
	return extract(ctx, src, opts.Out)
}

// openSource resolves the archive byte stream from either an S3 object (downloaded concurrently
// through a pipe) or a local file / stdin, returning a label for logging.
func openSource(ctx context.Context) (io.Reader, string, error) {
	switch {
	case opts.Bucket != "" || opts.Key != "":
		if opts.Bucket == "" || opts.Key == "" {
			return nil, "", fmt.Errorf("both --bucket and --key are required")
		}

		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("load default config error: %w", err)
		}
		client := s3.NewFromConfig(cfg)

		pr, pw := io.Pipe()
		go func() {
			var bar *progressbar.ProgressBar
			var completedPartCount int
			err := s3download.Download(ctx, client, opts.Bucket, opts.Key, pw, func(d *s3download.Downloader) {
				d.Concurrency = opts.MaxConcurrency
				d.PostGetPart = func(data []byte, size int64, partNumber, partCount int) {
					if bar == nil {
						bar = internal.DefaultBytes(size, "downloading")
					}
					if completedPartCount++; completedPartCount == partCount {
						_ = bar.Close()
					} else {
						_ = bar.Add64(int64(len(data)))
					}
				}
			})
			_ = pw.CloseWithError(err)
		}()

		return pr, fmt.Sprintf("s3://%s/%s", opts.Bucket, opts.Key), nil

	case opts.Args.File == "" || opts.Args.File == "-":
		return os.Stdin, "stdin", nil

	default:
		f, err := os.Open(string(opts.Args.File))
		if err != nil {
			return nil, "", fmt.Errorf("open error: %w", err)
		}
		return f, string(opts.Args.File), nil
	}
}

// extract reads every entry from src using streamzip and writes it under dir, mirroring the
// entry's name as a relative path.
func extract(ctx context.Context, src io.Reader, dir string) error {
	logger := internal.MustLogger(ctx)

	r := streamzip.NewReader(src)
	defer r.Close()

	for {
		entry, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read entry error: %w", err)
		}

		path := filepath.Join(dir, entry.Name)
		if rel, err := filepath.Rel(dir, path); err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
			return fmt.Errorf("entry %q escapes output directory", entry.Name)
		}

		if !r.CanReadEntryData(entry) {
			logger.Printf("skipping %q: unsupported entry (method=%d, data descriptor=%v)", entry.Name, entry.Method, entry.UsesDataDescriptor)
			continue
		}

		if len(entry.Name) > 0 && entry.Name[len(entry.Name)-1] == '/' {
			if err = os.MkdirAll(path, 0755); err != nil {
				return fmt.Errorf("create directory %q error: %w", path, err)
			}
			continue
		}

		if err = os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("create directory error: %w", err)
		}

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("create file %q error: %w", path, err)
		}

		var sizer internal.Sizer
		err = internal.CopyBufferWithContext(ctx, io.MultiWriter(f, &sizer), r, nil)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("extract %q error: %w", entry.Name, err)
		}

		logger.Printf("extracted %q (%s)", entry.Name, humanize.IBytes(uint64(sizer.Size)))
	}
}
