package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// IPutObjectAPI 抽象出歸檔所需的 S3 操作
type IPutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Operator 負責將回合結算結果歸檔至 S3。
// 結果以 JSON 形式存放，公開 Endpoint 用於產生可下載的連結。
type S3Operator struct {
	Client IPutObjectAPI
	// Bucket 是 S3 存儲桶的名稱。
	Bucket string
	// PublicEndpoint 是 S3 存儲桶的公開 Endpoint。
	PublicEndpoint *url.URL
}

func NewS3Operator(client IPutObjectAPI, bucket, publicBaseURL string) (*S3Operator, error) {
	const op = "NewS3Operator"
	publicEndpoint, err := url.Parse(publicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to parse public base URL, err=%w", op, err)
	}
	return &S3Operator{Client: client, Bucket: bucket, PublicEndpoint: publicEndpoint}, nil
}

// UploadObject 將內容上傳至指定路徑並回傳公開連結
func (s *S3Operator) UploadObject(ctx context.Context, key, contentType string, content []byte) (string, error) {
	const op = "UploadObject"
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to upload object to S3, err=%w", op, err)
	}
	uri := *s.PublicEndpoint
	uri.Path = path.Join(uri.Path, key)
	return uri.String(), nil
}

// ArchiveResult 將回合結算結果序列化為 JSON 後歸檔，
// 檔案路徑固定為 results/<roundID>.json。
func (s *S3Operator) ArchiveResult(ctx context.Context, roundID string, result any) (string, error) {
	const op = "ArchiveResult"
	content, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to marshal round result, err=%w", op, err)
	}
	key := path.Join("results", roundID+".json")
	uri, err := s.UploadObject(ctx, key, "application/json", content)
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to archive round result, roundID=%s, err=%w", op, roundID, err)
	}
	return uri, nil
}
