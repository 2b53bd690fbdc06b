// Package s3download implements a concurrent, ranged-GET S3 downloader whose output is
// delivered to an io.Writer in ascending order, suitable for feeding a forward-only reader (such
// as streamzip.Reader) through an io.Pipe while parts are still being fetched out of order.
package s3download

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MinPartSize is the smallest range size a Downloader will request per part.
const MinPartSize = 8 * 1024 * 1024

// DefaultConcurrency is the number of parts fetched in parallel when Concurrency is unset.
const DefaultConcurrency = 5

// APIClient is the subset of *s3.Client a Downloader needs.
type APIClient interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Downloader fetches an S3 object using concurrent ranged GetObject calls and writes the parts,
// in order, to a single io.Writer.
type Downloader struct {
	// PartSize is the size of each ranged GetObject request. Defaults to MinPartSize.
	PartSize int64

	// Concurrency is the number of goroutines issuing GetObject calls in parallel. Defaults
	// to DefaultConcurrency.
	Concurrency int

	// PostGetPart is invoked from the main goroutine right after a part's bytes have been
	// written, in order, to the destination writer. size is the object's total content
	// length. Implementations must not retain data.
	PostGetPart func(data []byte, size int64, partNumber, partCount int)

	// ModifyHeadObjectInput and ModifyGetObjectInput customise the respective S3 calls.
	ModifyHeadObjectInput func(*s3.HeadObjectInput)
	ModifyGetObjectInput  func(*s3.GetObjectInput)

	client APIClient
}

func newDownloader(client APIClient, optFns ...func(*Downloader)) (*Downloader, error) {
	d := &Downloader{
		PartSize:    MinPartSize,
		Concurrency: DefaultConcurrency,
		PostGetPart: func(data []byte, size int64, partNumber, partCount int) {
			log.Printf("downloaded %d/%d parts", partNumber, partCount)
		},
		client: client,
	}
	for _, fn := range optFns {
		fn(d)
	}

	if d.PartSize <= 0 {
		return nil, fmt.Errorf("partSize (%d) must be greater than 0", d.PartSize)
	}
	if d.Concurrency <= 0 {
		return nil, fmt.Errorf("concurrency (%d) must be greater than 0", d.Concurrency)
	}

	return d, nil
}

// Download downloads the S3 object specified by bucket and key and writes its bytes, in order,
// to w. optFns customise the Downloader's part size, concurrency, and per-call inputs.
func Download(ctx context.Context, client APIClient, bucket, key string, w io.Writer, optFns ...func(*Downloader)) error {
	d, err := newDownloader(client, optFns...)
	if err != nil {
		return err
	}

	return d.download(ctx, bucket, key, w)
}

func (d Downloader) download(ctx context.Context, bucket, key string, w io.Writer) error {
	headObjectInput := &s3.HeadObjectInput{Bucket: &bucket, Key: &key}
	if d.ModifyHeadObjectInput != nil {
		d.ModifyHeadObjectInput(headObjectInput)
	}
	headObjectOutput, err := d.client.HeadObject(ctx, headObjectInput)
	if err != nil {
		return err
	}
	size := *headObjectOutput.ContentLength
	partSize := d.PartSize
	partCount := int(math.Ceil(float64(size) / float64(partSize)))

	inputs := make(chan downloadInput, d.Concurrency)
	outputs := make(chan downloadOutput, d.Concurrency)
	for i := 0; i < d.Concurrency; i++ {
		go d.newWorker(bucket, key, partCount).do(ctx, inputs, outputs)
	}

	// The main goroutine sends ranges to fetch and, concurrently, drains completed parts.
	// Parts that arrive out of order are held in memory until every earlier part has been
	// written, so the destination writer always sees the object's bytes in order.
	parts := make(map[int]*downloadOutput, partCount)
	nextPartToWrite := 1
partLoop:
	for partNumber, startRange := 1, int64(0); ; {
		if partNumber == partCount {
			inputs <- downloadInput{
				PartNumber: partNumber,
				Range:      fmt.Sprintf("bytes=%d-", startRange),
			}
			break
		}

		for {
			select {
			case inputs <- downloadInput{
				PartNumber: partNumber,
				Range:      fmt.Sprintf("bytes=%d-%d", startRange, startRange+partSize-1),
			}:
				partNumber++
				startRange += partSize
				continue partLoop
			case result := <-outputs:
				if result.Err != nil {
					return result.Err
				}
				parts[result.PartNumber] = &result
				if err = d.flush(w, parts, &nextPartToWrite, size, partCount); err != nil {
					close(inputs)
					return err
				}
			case <-ctx.Done():
				close(inputs)
				return ctx.Err()
			}
		}
	}

	close(inputs)

	for nextPartToWrite <= partCount {
		select {
		case result := <-outputs:
			if result.Err != nil {
				return result.Err
			}
			parts[result.PartNumber] = &result
			if err = d.flush(w, parts, &nextPartToWrite, size, partCount); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// flush writes every consecutive part starting at *nextPartToWrite that is already available.
func (d Downloader) flush(w io.Writer, parts map[int]*downloadOutput, nextPartToWrite *int, size int64, partCount int) error {
	for part, ok := parts[*nextPartToWrite]; ok; part, ok = parts[*nextPartToWrite] {
		if _, err := w.Write(part.Data); err != nil {
			return fmt.Errorf("write part %d/%d error: %w", *nextPartToWrite, partCount, err)
		}
		if d.PostGetPart != nil {
			d.PostGetPart(part.Data, size, *nextPartToWrite, partCount)
		}
		delete(parts, *nextPartToWrite)
		*nextPartToWrite++
	}
	return nil
}

func (d Downloader) newWorker(bucket, key string, partCount int) *downloadWorker {
	return &downloadWorker{d, bucket, key, partCount}
}

type downloadInput struct {
	PartNumber int
	Range      string
}

type downloadOutput struct {
	PartNumber int
	Data       []byte
	Err        error
}

type downloadWorker struct {
	Downloader
	bucket    string
	key       string
	partCount int
}

func (w *downloadWorker) do(ctx context.Context, inputs <-chan downloadInput, outputs chan<- downloadOutput) {
	for {
		select {
		case part, ok := <-inputs:
			if !ok {
				return
			}

			getObjectInput := &s3.GetObjectInput{Bucket: &w.bucket, Key: &w.key, Range: &part.Range}
			if w.ModifyGetObjectInput != nil {
				w.ModifyGetObjectInput(getObjectInput)
			}

			getObjectOutput, err := w.client.GetObject(ctx, getObjectInput)
			if err != nil {
				outputs <- downloadOutput{
					PartNumber: part.PartNumber,
					Err:        fmt.Errorf("get part %d/%d (%s) error: %w", part.PartNumber, w.partCount, part.Range, err),
				}
				return
			}

			data, err := io.ReadAll(getObjectOutput.Body)
			_ = getObjectOutput.Body.Close()
			if err != nil {
				outputs <- downloadOutput{
					PartNumber: part.PartNumber,
					Err:        fmt.Errorf("read part %d/%d (%s) error: %w", part.PartNumber, w.partCount, part.Range, err),
				}
				return
			}

			outputs <- downloadOutput{PartNumber: part.PartNumber, Data: data}
		case <-ctx.Done():
			return
		}
	}
}
