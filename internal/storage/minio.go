package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"knowrag-backend/pkg/logger"
)

// 预签名链接里对外网关前缀的匹配
var downloadGatewayPattern = regexp.MustCompile(`https?://[^/]+/minio/download/api/`)

// MediaStore 封装 MinIO 访问：上传、预签名下载、以及把对外下载
// 地址改写为大模型可直连的内网地址。
type MediaStore struct {
	client *minio.Client

	// address 形如 host:port，内网直连入口
	address string
	// replaceURL 对外暴露的下载网关前缀
	replaceURL   string
	uploadBucket string
}

func NewMediaStore(address, accessKey, secretKey, replaceURL, uploadBucket string, secure bool) (*MediaStore, error) {
	client, err := minio.New(address, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return &MediaStore{
		client:       client,
		address:      address,
		replaceURL:   strings.TrimRight(replaceURL, "/"),
		uploadBucket: uploadBucket,
	}, nil
}

// RewriteFileURL 把对外下载网关形式的图片地址改写为内网直连地址。
// 已经是内网地址的原样返回。
func (s *MediaStore) RewriteFileURL(fileURL string) string {
	internalPrefix := "http://" + s.address
	if strings.HasPrefix(fileURL, internalPrefix) {
		return fileURL
	}
	suffix := strings.TrimPrefix(fileURL, s.replaceURL)
	suffix = strings.TrimLeft(suffix, "/")
	return internalPrefix + "/" + suffix
}

// UploadFile 上传本地文件并返回经下载网关的访问链接
func (s *MediaStore) UploadFile(ctx context.Context, filePath string) (string, error) {
	objectName := uuid.New().String() + filepath.Ext(filePath)
	_, err := s.client.FPutObject(ctx, s.uploadBucket, objectName, filePath, minio.PutObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("minio upload %s: %w", filePath, err)
	}
	logger.Infof("文件 %s 已上传到桶 %s，对象名 %s", filePath, s.uploadBucket, objectName)
	return s.replaceURL + "/" + s.uploadBucket + "/" + objectName, nil
}

// PresignedDownloadURL 生成预签名下载链接，并把内部网关前缀替换为对外地址
func (s *MediaStore) PresignedDownloadURL(ctx context.Context, bucket, objectName string, expire time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, bucket, objectName, expire, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, objectName, err)
	}
	return downloadGatewayPattern.ReplaceAllString(u.String(), s.replaceURL+"/"), nil
}
