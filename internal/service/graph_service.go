package service

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	config "github.com/postpipe/postpipe/configs"
)

// PublishService wraps the Graph API create-container/publish protocol for
// an Instagram business account. Every operation returns (success, status)
// and never lets an error escape: the status text carries the raw response
// for diagnosis.
type PublishService interface {
	PublishPhoto(imageURL, caption string) (bool, string)
	PublishCarousel(imageURLs []string, caption string) (bool, string)
	PublishVideo(videoURL, caption string) (bool, string)
}

type graphService struct {
	cfg          config.Config
	baseURL      string
	videoBaseURL string
	client       *http.Client
	videoClient  *http.Client
}

func NewGraphService(cfg config.Config) PublishService {
	version := cfg.Graph.APIVersion
	if version == "" {
		version = "v17.0"
	}
	return &graphService{
		cfg:          cfg,
		baseURL:      fmt.Sprintf("https://graph.facebook.com/%s", version),
		videoBaseURL: fmt.Sprintf("https://graph-video.facebook.com/%s", version),
		client:       &http.Client{Timeout: 30 * time.Second},
		// video container creation goes through the large-upload host
		videoClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type graphResult struct {
	StatusCode int
	ID         string
	Text       string
}

func (g *graphService) post(client *http.Client, base, path string, form url.Values) (*graphResult, error) {
	resp, err := client.PostForm(base+"/"+path, form)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	result := &graphResult{StatusCode: resp.StatusCode, Text: string(body)}
	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		result.ID = parsed.ID
	}
	return result, nil
}

func (g *graphService) ok(res *graphResult) bool {
	return res.StatusCode == http.StatusOK || res.StatusCode == http.StatusCreated
}

func (g *graphService) credentials() (token, igUser string, ok bool) {
	token = g.cfg.Graph.PageAccessToken
	igUser = g.cfg.Graph.IGUserID
	return token, igUser, token != "" && igUser != ""
}

func (g *graphService) publishContainer(igUser, creationID, token string) (bool, string) {
	form := url.Values{}
	form.Set("creation_id", creationID)
	form.Set("access_token", token)

	res, err := g.post(g.client, g.baseURL, igUser+"/media_publish", form)
	if err != nil {
		return false, fmt.Sprintf("Publish request failed: %v", err)
	}
	if g.ok(res) {
		return true, fmt.Sprintf("Published: %s", res.Text)
	}
	return false, fmt.Sprintf("Publish failed: %s", res.Text)
}

func (g *graphService) PublishPhoto(imageURL, caption string) (bool, string) {
	token, igUser, ok := g.credentials()
	if !ok {
		return false, "Facebook/Instagram credentials not configured"
	}

	form := url.Values{}
	form.Set("image_url", imageURL)
	form.Set("caption", caption)
	form.Set("access_token", token)

	res, err := g.post(g.client, g.baseURL, igUser+"/media", form)
	if err != nil {
		return false, fmt.Sprintf("Failed to create media container: %v", err)
	}
	if !g.ok(res) {
		return false, fmt.Sprintf("Failed to create media container: %s", res.Text)
	}
	if res.ID == "" {
		return false, fmt.Sprintf("No creation id returned: %s", res.Text)
	}

	return g.publishContainer(igUser, res.ID, token)
}

func (g *graphService) PublishCarousel(imageURLs []string, caption string) (bool, string) {
	token, igUser, ok := g.credentials()
	if !ok {
		return false, "Facebook/Instagram credentials not configured"
	}

	childIDs := make([]string, 0, len(imageURLs))
	for _, imageURL := range imageURLs {
		form := url.Values{}
		form.Set("image_url", imageURL)
		form.Set("is_carousel_item", strconv.FormatBool(true))
		form.Set("access_token", token)

		res, err := g.post(g.client, g.baseURL, igUser+"/media", form)
		if err != nil {
			return false, fmt.Sprintf("Failed creating child media: %v", err)
		}
		if !g.ok(res) {
			return false, fmt.Sprintf("Failed creating child media: %s", res.Text)
		}
		if res.ID == "" {
			return false, fmt.Sprintf("No child id returned: %s", res.Text)
		}
		childIDs = append(childIDs, res.ID)
	}

	form := url.Values{}
	form.Set("media_type", "CAROUSEL")
	form.Set("children", strings.Join(childIDs, ","))
	form.Set("caption", caption)
	form.Set("access_token", token)

	res, err := g.post(g.client, g.baseURL, igUser+"/media", form)
	if err != nil {
		return false, fmt.Sprintf("Failed to create parent carousel container: %v", err)
	}
	if !g.ok(res) {
		return false, fmt.Sprintf("Failed to create parent carousel container: %s", res.Text)
	}
	if res.ID == "" {
		return false, fmt.Sprintf("No creation id for carousel: %s", res.Text)
	}

	return g.publishContainer(igUser, res.ID, token)
}

func (g *graphService) PublishVideo(videoURL, caption string) (bool, string) {
	token, igUser, ok := g.credentials()
	if !ok {
		return false, "Facebook/Instagram credentials not configured"
	}

	form := url.Values{}
	form.Set("video_url", videoURL)
	form.Set("caption", caption)
	form.Set("access_token", token)

	res, err := g.post(g.videoClient, g.videoBaseURL, igUser+"/media", form)
	if err != nil {
		return false, fmt.Sprintf("Failed to create video container: %v", err)
	}
	if !g.ok(res) {
		return false, fmt.Sprintf("Failed to create video container: %s", res.Text)
	}
	if res.ID == "" {
		return false, fmt.Sprintf("No creation id returned for video: %s", res.Text)
	}

	return g.publishContainer(igUser, res.ID, token)
}
