package docstore

import (
	"context"

	"github.com/singnet/snet-docstore-go/pkg/connection"
	"github.com/singnet/snet-docstore-go/pkg/storage"
	"go.uber.org/zap"
)

// FileMeta describes an uploaded file as handed over by the upload layer.
type FileMeta struct {
	FileName string
	MimeType string
}

// UploadResult is what the upload layer embeds into the owning record.
type UploadResult struct {
	CID      string `json:"cid"`
	Size     int    `json:"size"`
	Locator  string `json:"locator"`
	FileName string `json:"fileName,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// UploadFile stores raw bytes (not a Record) and pins them.
func (s *Store) UploadFile(ctx context.Context, data []byte, meta FileMeta) (*UploadResult, error) {
	if !s.conn.Connected() {
		return nil, connection.NotConnected()
	}
	cid, err := s.persist(ctx, data)
	if err != nil {
		return nil, err
	}
	zap.L().Info("file uploaded",
		zap.String("cid", cid),
		zap.String("file", meta.FileName),
		zap.String("mime", meta.MimeType),
		zap.Int("size", len(data)))
	return &UploadResult{
		CID:      cid,
		Size:     len(data),
		Locator:  storage.IpfsPrefix + cid,
		FileName: meta.FileName,
		MimeType: meta.MimeType,
	}, nil
}
