package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/videodiary/internal/common"
	"github.com/dmitrijs2005/videodiary/internal/logging"
	"github.com/dmitrijs2005/videodiary/internal/mimex"
	"github.com/dmitrijs2005/videodiary/internal/models"
)

// ProviderNameBucket identifies the HTTP bucket adapter.
const ProviderNameBucket = "bucket"

// BucketClient talks to a bucket-style HTTP API with bearer-token auth.
// Small metadata documents go up in one multipart request; binary payloads
// use a two-step resumable upload (initiate a session, then upload the full
// body). Every call resolves a valid token first; a call that still gets an
// authorization rejection is retried exactly once after forcing a new
// token.
type BucketClient struct {
	baseURL    string
	tokens     *TokenSource
	httpClient *http.Client
	log        logging.Logger
}

func NewBucketClient(baseURL string, tokens *TokenSource, httpClient *http.Client, log logging.Logger) *BucketClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &BucketClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: httpClient,
		log:        log,
	}
}

func (c *BucketClient) Name() string { return ProviderNameBucket }

// fileResource is the wire representation of one remote object.
type fileResource struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	MimeType      string            `json:"mimeType"`
	AppProperties map[string]string `json:"appProperties"`
}

type fileList struct {
	Files []fileResource `json:"files"`
}

// fileMetadata is the JSON document sent when creating or updating an
// object.
type fileMetadata struct {
	Name          string            `json:"name"`
	MimeType      string            `json:"mimeType"`
	AppProperties map[string]string `json:"appProperties"`
}

func videoName(entryID, mimeType string) string {
	return fmt.Sprintf("video_%s.%s", entryID, mimex.Extension(mimeType))
}

func metaName(entryID string) string {
	return fmt.Sprintf("entry_%s.json", entryID)
}

// doAuthorized sends the request produced by build, retrying exactly once
// with a forced fresh token when the first attempt is rejected as
// unauthorized.
func (c *BucketClient) doAuthorized(ctx context.Context, build func(token string) (*http.Request, error)) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrAuthExpired, err)
		}

		req, err := build(token)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrTransient, err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			_ = resp.Body.Close()
			c.log.Warn(ctx, "token rejected, forcing re-auth and retrying once")
			c.tokens.Invalidate()
			continue
		}
		return resp, nil
	}
}

// classify maps an unexpected HTTP status onto the shared error taxonomy.
func classify(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", common.ErrAuthExpired, msg)
	case resp.StatusCode == http.StatusNotFound:
		return common.ErrNotFound
	case resp.StatusCode == http.StatusInsufficientStorage,
		resp.StatusCode == http.StatusForbidden && strings.Contains(msg, "quota"):
		return fmt.Errorf("%w: %s", common.ErrQuotaExceeded, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", common.ErrTransient, resp.StatusCode, msg)
	}
}

// lookup finds an existing remote object by tag and name, returning its id
// or "" when absent. This precedes every create so re-uploads update in
// place instead of duplicating.
func (c *BucketClient) lookup(ctx context.Context, kind, entryID, name string) (string, error) {
	q := url.Values{}
	q.Set("type", kind)
	q.Set("entryId", entryID)
	q.Set("name", name)

	resp, err := c.doAuthorized(ctx, func(token string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files?"+q.Encode(), nil)
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classify(resp)
	}

	var list fileList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return "", fmt.Errorf("%w: bad lookup response: %v", common.ErrTransient, err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].ID, nil
}

// UploadMeta sends the metadata document in a single multipart request.
func (c *BucketClient) UploadMeta(ctx context.Context, entryID string, meta []byte) (*models.CloudFileRef, error) {
	name := metaName(entryID)
	existing, err := c.lookup(ctx, TagEntryMeta, entryID, name)
	if err != nil {
		return nil, err
	}

	id, err := c.uploadMultipart(ctx, existing, fileMetadata{
		Name:          name,
		MimeType:      "application/json",
		AppProperties: map[string]string{"type": TagEntryMeta, "entryId": entryID},
	}, meta)
	if err != nil {
		return nil, err
	}

	return &models.CloudFileRef{Provider: ProviderNameBucket, FileID: id, MimeType: "application/json"}, nil
}

// UploadVideo sends the payload through a resumable session: initiate, then
// upload the full body. Progress is reported as a single jump to
// completion.
func (c *BucketClient) UploadVideo(ctx context.Context, entryID, mimeType string, data []byte, progress ProgressFunc) (*models.CloudFileRef, error) {
	name := videoName(entryID, mimeType)
	existing, err := c.lookup(ctx, TagVideo, entryID, name)
	if err != nil {
		return nil, err
	}

	session, err := c.initiateResumable(ctx, existing, fileMetadata{
		Name:          name,
		MimeType:      mimeType,
		AppProperties: map[string]string{"type": TagVideo, "entryId": entryID},
	})
	if err != nil {
		return nil, err
	}

	id, err := c.uploadSession(ctx, session, mimeType, data)
	if err != nil {
		return nil, err
	}

	if progress != nil {
		progress(int64(len(data)), int64(len(data)))
	}
	return &models.CloudFileRef{Provider: ProviderNameBucket, FileID: id, MimeType: mimeType}, nil
}

// uploadMultipart performs the single-request upload used for small
// documents: a related multipart body with a JSON metadata part followed by
// the media part. A non-empty fileID turns the create into an in-place
// update.
func (c *BucketClient) uploadMultipart(ctx context.Context, fileID string, meta fileMetadata, data []byte) (string, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	part, err := w.CreatePart(metaHeader)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(metaJSON); err != nil {
		return "", err
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", meta.MimeType)
	part, err = w.CreatePart(mediaHeader)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	method, target := http.MethodPost, c.baseURL+"/upload?uploadType=multipart"
	if fileID != "" {
		method, target = http.MethodPut, c.baseURL+"/upload/"+url.PathEscape(fileID)+"?uploadType=multipart"
	}

	body := buf.Bytes()
	resp, err := c.doAuthorized(ctx, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "multipart/related; boundary="+w.Boundary())
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", classify(resp)
	}

	var res fileResource
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("%w: bad upload response: %v", common.ErrTransient, err)
	}
	return res.ID, nil
}

// initiateResumable opens an upload session and returns its URI.
func (c *BucketClient) initiateResumable(ctx context.Context, fileID string, meta fileMetadata) (string, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}

	method, target := http.MethodPost, c.baseURL+"/upload?uploadType=resumable"
	if fileID != "" {
		method, target = http.MethodPut, c.baseURL+"/upload/"+url.PathEscape(fileID)+"?uploadType=resumable"
	}

	resp, err := c.doAuthorized(ctx, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(metaJSON))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classify(resp)
	}

	session := resp.Header.Get("Location")
	if session == "" {
		return "", fmt.Errorf("%w: resumable initiate returned no session", common.ErrTransient)
	}
	return session, nil
}

// uploadSession uploads the full body to a session URI.
func (c *BucketClient) uploadSession(ctx context.Context, session, mimeType string, data []byte) (string, error) {
	resp, err := c.doAuthorized(ctx, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, session, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mimeType)
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", classify(resp)
	}

	var res fileResource
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("%w: bad session response: %v", common.ErrTransient, err)
	}
	return res.ID, nil
}

// ListMetas lists all entry-meta objects in the app folder.
func (c *BucketClient) ListMetas(ctx context.Context) ([]RemoteObject, error) {
	q := url.Values{}
	q.Set("type", TagEntryMeta)

	resp, err := c.doAuthorized(ctx, func(token string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files?"+q.Encode(), nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classify(resp)
	}

	var list fileList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("%w: bad list response: %v", common.ErrTransient, err)
	}

	result := make([]RemoteObject, 0, len(list.Files))
	for _, f := range list.Files {
		result = append(result, RemoteObject{
			Ref:     models.CloudFileRef{Provider: ProviderNameBucket, FileID: f.ID, MimeType: f.MimeType},
			Name:    f.Name,
			EntryID: f.AppProperties["entryId"],
			Kind:    f.AppProperties["type"],
		})
	}
	return result, nil
}

// Download fetches an object's content.
func (c *BucketClient) Download(ctx context.Context, ref *models.CloudFileRef) ([]byte, error) {
	resp, err := c.doAuthorized(ctx, func(token string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files/"+url.PathEscape(ref.FileID)+"?alt=media", nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classify(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrTransient, err)
	}
	return data, nil
}

// Delete removes an object; absent objects are fine.
func (c *BucketClient) Delete(ctx context.Context, ref *models.CloudFileRef) error {
	resp, err := c.doAuthorized(ctx, func(token string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/files/"+url.PathEscape(ref.FileID), nil)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return classify(resp)
	}
}
