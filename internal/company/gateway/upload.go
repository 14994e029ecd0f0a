package gateway

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"

	e "github.com/lucidcount/dashboard/internal/company/errors"
	"github.com/lucidcount/dashboard/internal/company/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// uploadGroup is the set of files of one document type, sent in one request.
type uploadGroup struct {
	documentType string
	files        []*models.Attachment
}

// groupByType groups attached slots by document type in first-seen order.
// Slots without a file are skipped.
func groupByType(slots []models.DocumentSlot) []uploadGroup {
	var groups []uploadGroup
	index := make(map[string]int)
	for _, slot := range slots {
		if !slot.HasFile() {
			continue
		}
		i, ok := index[slot.DocumentType]
		if !ok {
			i = len(groups)
			index[slot.DocumentType] = i
			groups = append(groups, uploadGroup{documentType: slot.DocumentType})
		}
		groups[i].files = append(groups[i].files, slot.File)
	}
	return groups
}

// UploadDocuments sends one multipart request per document type concurrently
// and returns all created documents in group order. It returns once every
// request has settled; any failed request fails the whole upload with the
// first error observed, without cancelling the others.
func (c *Client) UploadDocuments(ctx context.Context, taxID, regime string, slots []models.DocumentSlot) ([]models.Document, error) {
	groups := groupByType(slots)
	if len(groups) == 0 {
		return []models.Document{}, nil
	}

	results := make([][]models.Document, len(groups))
	var g errgroup.Group
	for i, group := range groups {
		g.Go(func() error {
			docs, err := c.uploadGroup(ctx, taxID, regime, group)
			if err != nil {
				return err
			}
			results[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	documents := []models.Document{}
	for _, docs := range results {
		documents = append(documents, docs...)
	}
	c.logger.Info("Documents uploaded",
		zap.String("cnpj", taxID),
		zap.Int("groups", len(groups)),
		zap.Int("documents", len(documents)),
	)
	return documents, nil
}

func (c *Client) uploadGroup(ctx context.Context, taxID, regime string, group uploadGroup) ([]models.Document, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fields := [][2]string{
		{"cnpj", taxID},
		{"regime", regime},
		{"tipo_documento", group.documentType},
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("%w: write field %s: %v", e.ErrInvalidInput, f[0], err)
		}
	}
	for _, file := range group.files {
		part, err := writer.CreatePart(filePartHeader(file))
		if err != nil {
			return nil, fmt.Errorf("%w: create file part: %v", e.ErrInvalidInput, err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, fmt.Errorf("%w: write file part: %v", e.ErrInvalidInput, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: close multipart body: %v", e.ErrInvalidInput, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, pathUploadFiles, nil, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	documents := []models.Document{}
	if err := c.do(req, &documents, false); err != nil {
		return nil, err
	}
	return documents, nil
}

func filePartHeader(file *models.Attachment) textproto.MIMEHeader {
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, file.Filename))
	h.Set("Content-Type", contentType)
	return h
}
