package maven

import (
	"bytes"
	"context"
	"crypto"
	_ "crypto/sha1" // Registers SHA-1, the checksum Maven publishes next to every file.
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/deploy-manager/internal/logger"
	"github.com/oshokin/deploy-manager/internal/service/common"
)

const (
	metadataFilename = "maven-metadata.xml"

	// ArtifactFileMode is the mode of installed artifacts.
	ArtifactFileMode os.FileMode = 0o644

	// checksumFunction matches the .sha1 files of the repository.
	checksumFunction = crypto.SHA1

	maxMetadataSize  = 1 << 20
	maxSignatureSize = 1 << 16
	maxChecksumSize  = 1 << 10
)

var (
	errBadHTTPStatus = errors.New("unexpected http status")
	errNoVersion     = errors.New("maven metadata lists no version")
	errBadChecksum   = errors.New("malformed checksum file")
	errURLRequired   = errors.New("repository url must be provided")
	errCoordinates   = errors.New("group id and artifact id must be provided")
	errHomeRequired  = errors.New("artifact home must be provided")
	errEmptyVersion  = errors.New("version must be provided")
)

// Options configures the repository client.
type Options struct {
	// URL is the repository root.
	URL string
	// GroupID and ArtifactID are the payload coordinates used by Fetch and Signature.
	GroupID    string
	ArtifactID string
	// Home is the directory artifacts are installed into.
	Home string
	// ConnectTimeout and ReadTimeout bound every request.
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Client reads a Maven repository over HTTP.
type Client struct {
	// base is the parsed repository root.
	base *url.URL
	// opts holds coordinates and the install directory.
	opts Options
	// http performs requests with the configured timeouts.
	http *http.Client
}

// metadata is the part of maven-metadata.xml the client reads.
type metadata struct {
	Versioning struct {
		Latest   string   `xml:"latest"`
		Release  string   `xml:"release"`
		Versions []string `xml:"versions>version"`
	} `xml:"versioning"`
}

// New validates opts and creates a client.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errURLRequired
	}

	if opts.GroupID == "" || opts.ArtifactID == "" {
		return nil, errCoordinates
	}

	if opts.Home == "" {
		return nil, errHomeRequired
	}

	base, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse repository url: %w", err)
	}

	return &Client{
		base: base,
		opts: opts,
		http: common.NewHTTPClient(opts.ConnectTimeout, opts.ReadTimeout),
	}, nil
}

// LatestVersion returns the newest published release of groupID:artifactID.
// The release marker wins, then latest, then the last listed version.
func (c *Client) LatestVersion(ctx context.Context, groupID, artifactID string) (string, error) {
	body, err := c.get(ctx, c.fileURL(groupID, artifactID, metadataFilename), maxMetadataSize)
	if err != nil {
		return "", fmt.Errorf("download metadata: %w", err)
	}

	var meta metadata
	if err = xml.Unmarshal(body, &meta); err != nil {
		return "", fmt.Errorf("decode metadata: %w", err)
	}

	v := meta.Versioning

	switch {
	case strings.TrimSpace(v.Release) != "":
		return strings.TrimSpace(v.Release), nil
	case strings.TrimSpace(v.Latest) != "":
		return strings.TrimSpace(v.Latest), nil
	case len(v.Versions) > 0:
		return strings.TrimSpace(v.Versions[len(v.Versions)-1]), nil
	default:
		return "", fmt.Errorf("%s:%s: %w", groupID, artifactID, errNoVersion)
	}
}

// ArtifactPath is where Fetch installs version.
func (c *Client) ArtifactPath(version string) string {
	return filepath.Join(c.opts.Home, c.jarName(version))
}

// Fetch installs the jar of version into Home and returns its path. An
// installed file matching the published checksum is reused as is.
func (c *Client) Fetch(ctx context.Context, version string) (string, error) {
	if version == "" {
		return "", errEmptyVersion
	}

	jarURL := c.fileURL(c.opts.GroupID, c.opts.ArtifactID, version, c.jarName(version))
	target := c.ArtifactPath(version)

	checksum, err := c.checksum(ctx, jarURL+".sha1")
	if err != nil {
		return "", err
	}

	if installed, err := fileChecksum(target); err == nil && bytes.Equal(installed, checksum) {
		logger.InfoKV(ctx, "Artifact already installed", "path", target)
		return target, nil
	}

	logger.InfoKV(ctx, "Downloading artifact", "url", jarURL, "target", target)

	if err = c.install(ctx, jarURL, target, checksum); err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Artifact installed", "path", target)

	return target, nil
}

// Signature downloads the armored detached signature of version.
func (c *Client) Signature(ctx context.Context, version string) ([]byte, error) {
	if version == "" {
		return nil, errEmptyVersion
	}

	ascURL := c.fileURL(c.opts.GroupID, c.opts.ArtifactID, version, c.jarName(version)) + ".asc"

	signature, err := c.get(ctx, ascURL, maxSignatureSize)
	if err != nil {
		return nil, fmt.Errorf("download signature: %w", err)
	}

	return signature, nil
}

// install streams jarURL into target through go-update; the previous file is
// only replaced once the checksum of the new content matches.
func (c *Client) install(ctx context.Context, jarURL, target string, checksum []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil { //nolint:mnd // Conventional directory mode.
		return fmt.Errorf("create artifact home: %w", err)
	}

	// go-update moves the old target aside before renaming, so it must exist.
	created := false

	if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
		placeholder, err := os.Create(filepath.Clean(target))
		if err != nil {
			return fmt.Errorf("create artifact placeholder: %w", err)
		}

		_ = placeholder.Close()
		created = true
	}

	resp, err := c.open(ctx, jarURL)
	if err != nil {
		removePlaceholder(target, created)
		return fmt.Errorf("download artifact: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	err = goupdate.Apply(resp.Body, goupdate.Options{
		TargetPath: target,
		TargetMode: ArtifactFileMode,
		Checksum:   checksum,
		Hash:       checksumFunction,
	})
	if err != nil {
		removePlaceholder(target, created)
		return fmt.Errorf("install artifact: %w", err)
	}

	oldFile := target + ".old"
	if _, err = os.Stat(oldFile); err == nil {
		_ = os.Remove(oldFile)
	}

	return nil
}

func removePlaceholder(target string, created bool) {
	if !created {
		return
	}

	if info, err := os.Stat(target); err == nil && info.Size() == 0 {
		_ = os.Remove(target)
	}
}

// checksum downloads a .sha1 file: hex digest optionally followed by a file name.
func (c *Client) checksum(ctx context.Context, checksumURL string) ([]byte, error) {
	body, err := c.get(ctx, checksumURL, maxChecksumSize)
	if err != nil {
		return nil, fmt.Errorf("download checksum: %w", err)
	}

	fields := strings.Fields(string(body))
	if len(fields) == 0 {
		return nil, errBadChecksum
	}

	sum, err := hex.DecodeString(fields[0])
	if err != nil || len(sum) != checksumFunction.Size() {
		return nil, fmt.Errorf("%s: %w", checksumURL, errBadChecksum)
	}

	return sum, nil
}

func (c *Client) get(ctx context.Context, fileURL string, limit int64) ([]byte, error) {
	resp, err := c.open(ctx, fileURL)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

func (c *Client) open(ctx context.Context, fileURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s, %s: %w", fileURL, resp.Status, errBadHTTPStatus)
	}

	return resp, nil
}

// fileURL joins the repository root with the group path and the given elements.
func (c *Client) fileURL(groupID, artifactID string, elems ...string) string {
	u := *c.base
	parts := append([]string{u.Path}, strings.Split(groupID, ".")...)
	parts = append(parts, artifactID)
	parts = append(parts, elems...)
	u.Path = path.Join(parts...)

	return u.String()
}

func (c *Client) jarName(version string) string {
	return c.opts.ArtifactID + "-" + version + ".jar"
}

// fileChecksum hashes the file at path with the repository checksum function.
func fileChecksum(path string) ([]byte, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = f.Close()
	}()

	hasher := checksumFunction.New()
	if _, err = io.Copy(hasher, f); err != nil {
		return nil, err
	}

	return hasher.Sum(nil), nil
}
