// Package report uploads run results to an optional collection server.
// With no server configured every call is a cheap no-op, the capture flows
// never depend on connectivity.
package report

import (
	"context"
	"crypto/md5"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/imroc/req/v3"
	"go.uber.org/zap"

	"github.com/sigbench/sigctl/internal/config"
	"github.com/sigbench/sigctl/pkg/log"
)

const (
	RequestTimeout          = 10 * time.Second
	UploadTimeout           = 90 * time.Second
	RequestRetryMinWaitTime = 1 * time.Second
	RequestRetryMaxWaitTime = 10 * time.Second
	MaxRetries              = 3
)

type ResponseError struct {
	Status string
	Body   []byte
	Code   int
}

// Error converts the response error to string, but does not print the body
func (e *ResponseError) Error() string {
	return fmt.Sprintf("code: %d status: %s", e.Code, e.Status)
}

// errorFromResponse provides properly typed errors for further handling
func errorFromResponse(err error, resp *req.Response) error {
	// If an error was encountered, relay it unwrapped
	if err != nil {
		return err
	}

	if resp.IsSuccessState() {
		return nil
	}

	return &ResponseError{
		Code:   resp.StatusCode,
		Status: resp.Status,
		Body:   resp.Bytes(),
	}
}

// Client talks to the collection server. A nil-configured client (empty url)
// is still safe to use, it just drops everything with a debug log.
type Client struct {
	client     *req.Client
	sensorName string
	enabled    bool
}

func NewClient(conf config.ReportConfig, debug bool) *Client {
	c := &Client{sensorName: conf.SensorName}

	if conf.Url == "" {
		log.Debug("no report server configured, uploads disabled")
		return c
	}

	c.enabled = true
	c.client = req.C()

	if debug {
		c.client.EnableDebugLog()
	}

	c.client.SetBaseURL(conf.Url)

	if conf.Username != "" {
		log.Info("using basic auth mechanism", zap.String("username", conf.Username))
		c.client.SetCommonBasicAuth(conf.Username, conf.Password)
	}

	if conf.AllowInsecure {
		// Skip TLS verification upon request
		c.client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
		log.Warn("!WARNING! DISABLED TLS CERTIFICATE VERIFICATION !WARNING!")
	}

	c.client.SetTimeout(RequestTimeout)
	c.client.SetCommonRetryCount(MaxRetries)
	c.client.SetCommonRetryBackoffInterval(RequestRetryMinWaitTime, RequestRetryMaxWaitTime)

	return c
}

func (c *Client) Enabled() bool {
	return c.enabled
}

// GetClient Use this for tests to set the transport to mock
func (c *Client) GetClient() *req.Client {
	return c.client
}

// PutStatus posts the run summary
func (c *Client) PutStatus(ctx context.Context, status RunStatus) error {
	if !c.enabled {
		log.Debug("report disabled, dropping status", zap.String("run", status.RunID))
		return nil
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(status).
		Put("runs/update/" + c.sensorName)

	return errorFromResponse(err, resp)
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	hash := md5.New()
	if _, err = io.Copy(hash, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// PostRunData uploads the result archive of a run
func (c *Client) PostRunData(ctx context.Context, runID string, archivePath string) error {
	if !c.enabled {
		log.Debug("report disabled, dropping archive", zap.String("file", archivePath))
		return nil
	}

	md5sum, err := fileMD5(archivePath)
	if err != nil {
		log.Error("could not hash result archive", zap.String("file", archivePath), zap.Error(err))
		return err
	}

	// Archives can get big, give the upload its own timeout
	c.client.SetTimeout(UploadTimeout)
	defer c.client.SetTimeout(RequestTimeout)

	resp, err := c.client.R().
		SetContext(ctx).
		SetFile("in_file", archivePath).
		EnableForceChunkedEncoding().
		SetUploadCallbackWithInterval(func(info req.UploadInfo) {
			log.Info("upload progress",
				zap.String("file", info.FileName),
				zap.Float64("pct", float64(info.UploadedSize)/float64(info.FileSize)*100.0))
		}, 1*time.Second).
		Post("data/upload/" + c.sensorName + "/" + runID + "?md5=" + md5sum)

	if err != nil {
		log.Error("error uploading run archive", zap.String("file", archivePath), zap.Error(err))
		return err
	}

	return errorFromResponse(nil, resp)
}
