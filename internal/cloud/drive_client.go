package cloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"pld/internal/structures"
)

// FileRef identifies the remote copy of the document.
type FileRef struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ModifiedTime string `json:"modifiedTime"`
}

// DriveClientInterface wraps the four remote store calls a reconciliation
// pass can make. Files live in the app-private folder, so every request is
// scoped by the bearer token alone.
type DriveClientInterface interface {
	FindFile(ctx context.Context, token, name string) (*FileRef, error)
	Download(ctx context.Context, token, fileID string) ([]byte, error)
	Create(ctx context.Context, token, name string, content []byte) (string, error)
	Update(ctx context.Context, token, fileID string, content []byte) error
}

type DriveClient struct {
	conf   *structures.Config
	client *http.Client
}

func NewDriveClient(conf *structures.Config, client *http.Client) DriveClientInterface {
	return &DriveClient{conf: conf, client: client}
}

// FindFile looks the document up by its exact name. A missing file is not an
// error; it returns nil so the caller can create one.
func (c *DriveClient) FindFile(ctx context.Context, token, name string) (*FileRef, error) {
	query := url.Values{}
	query.Set("spaces", "appDataFolder")
	query.Set("q", fmt.Sprintf("name='%s' and trashed=false", name))
	query.Set("fields", "files(id,name,modifiedTime)")

	data, err := c.do(ctx, http.MethodGet, c.conf.CloudSync.APIBase+"/files?"+query.Encode(), token, "", nil)
	if err != nil {
		return nil, err
	}

	var list struct {
		Files []FileRef `json:"files"`
	}
	if err = json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("unexpected file list response: %w", err)
	}
	if len(list.Files) == 0 {
		return nil, nil
	}
	return &list.Files[0], nil
}

func (c *DriveClient) Download(ctx context.Context, token, fileID string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, c.conf.CloudSync.APIBase+"/files/"+fileID+"?alt=media", token, "", nil)
}

func (c *DriveClient) Create(ctx context.Context, token, name string, content []byte) (string, error) {
	metadata := map[string]interface{}{
		"name":    name,
		"parents": []string{"appDataFolder"},
	}
	contentType, body, err := multipartBody(metadata, content)
	if err != nil {
		return "", err
	}

	data, err := c.do(ctx, http.MethodPost, c.conf.CloudSync.UploadBase+"/files?uploadType=multipart", token, contentType, bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err = json.Unmarshal(data, &created); err != nil {
		return "", fmt.Errorf("unexpected create response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("create response carries no file id")
	}
	return created.ID, nil
}

func (c *DriveClient) Update(ctx context.Context, token, fileID string, content []byte) error {
	metadata := map[string]interface{}{
		"name": c.conf.CloudSync.FileName,
	}
	contentType, body, err := multipartBody(metadata, content)
	if err != nil {
		return err
	}

	_, err = c.do(ctx, http.MethodPatch, c.conf.CloudSync.UploadBase+"/files/"+fileID+"?uploadType=multipart", token, contentType, bytes.NewReader(body))
	return err
}

func (c *DriveClient) do(ctx context.Context, method, endpoint, token, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Status: resp.StatusCode, Body: truncateBody(data)}
	}
	return data, nil
}

// multipartBody builds the two-part multipart/related payload the upload
// endpoints expect: a JSON metadata part followed by the JSON content part.
func multipartBody(metadata interface{}, content []byte) (string, []byte, error) {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return "", nil, err
	}

	boundary := uuid.NewString()
	var buf bytes.Buffer
	buf.WriteString("--" + boundary + "\r\n")
	buf.WriteString("Content-Type: application/json; charset=UTF-8\r\n\r\n")
	buf.Write(meta)
	buf.WriteString("\r\n--" + boundary + "\r\n")
	buf.WriteString("Content-Type: application/json\r\n\r\n")
	buf.Write(content)
	buf.WriteString("\r\n--" + boundary + "--\r\n")
	return "multipart/related; boundary=" + boundary, buf.Bytes(), nil
}
