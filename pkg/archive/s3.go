package archive

import (
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/uxmanz/ArcgisTerrain-Server/pkg/pmtiles"
)

// s3Opener opens archives stored as objects under an S3 prefix. The
// pmtiles reader runs over ranged GetObject reads, so only the header,
// directories and requested tiles are ever transferred.
type s3Opener struct {
	client s3iface.S3API
	bucket string
	prefix string
}

func (o *s3Opener) open(name string) (*pmtiles.Reader, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	key := cleaned + ".pmtiles"
	if o.prefix != "" {
		key = strings.TrimSuffix(o.prefix, "/") + "/" + key
	}

	return pmtiles.NewReader(&s3ReaderAt{
		client: o.client,
		bucket: o.bucket,
		key:    key,
	})
}

// NewS3Store serves archives from s3://{bucket}/{prefix}/{name}.pmtiles.
func NewS3Store(client s3iface.S3API, bucket, prefix, healthName string) Store {
	return newStore(&s3Opener{client: client, bucket: bucket, prefix: prefix}, healthName)
}

// s3ReaderAt adapts ranged GetObject requests to io.ReaderAt.
type s3ReaderAt struct {
	client s3iface.S3API
	bucket string
	key    string
}

func (r *s3ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	byteRange := fmt.Sprintf("bytes=%d-%d", off, off+int64(len(p))-1)
	output, err := r.client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(byteRange),
	})
	if err != nil {
		if awsErr, ok := err.(awserr.Error); ok && awsErr.Code() == "NoSuchKey" {
			return 0, fmt.Errorf("s3://%s/%s does not exist: %w", r.bucket, r.key, err)
		}
		return 0, err
	}
	defer output.Body.Close()

	n, err := io.ReadFull(output.Body, p)
	if err == io.ErrUnexpectedEOF {
		// Short object: the reader asked past the end.
		return n, io.EOF
	}
	return n, err
}
