package grapplersguide

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"grapplersguide-dl/internal/catalog"
	"grapplersguide-dl/internal/crawler"
)

// downloadDataUrl maps `/<user>/download/<other>/<video>` to the endpoint the
// download page loads its file list from.
func downloadDataUrl(page *url.URL) (*url.URL, error) {
	parts := strings.Split(page.Path, "/")
	if len(parts) != 5 || parts[0] != "" || parts[2] != "download" {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedPath, page.Path)
	}
	userId, otherId, videoId := parts[1], parts[3], parts[4]
	if userId == "" || otherId == "" || videoId == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedPath, page.Path)
	}

	query := url.Values{}
	query.Set("action", "load_download_data")
	return page.ResolveReference(&url.URL{
		Path:     fmt.Sprintf("/%s/download/data/%s/%s", userId, otherId, videoId),
		RawQuery: query.Encode(),
	}), nil
}

func (s *Spider) handleDownloadPage(res *crawler.Response, st downloadPage) (step, error) {
	link, err := downloadDataUrl(res.Url)
	if err != nil {
		return step{}, err
	}

	req := crawler.GETRequest(link, downloadData(st))
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	var out step
	out.request(req)
	return out, nil
}

// looseString accepts a json string or number.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = looseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("want string or number, got %s", data)
	}
	*s = looseString(num.String())
	return nil
}

// looseInt accepts a json number or a numeric string.
type looseInt int

func (n *looseInt) UnmarshalJSON(data []byte) error {
	var str looseString
	if err := str.UnmarshalJSON(data); err != nil {
		return err
	}
	if str == "" {
		return nil
	}
	f, err := strconv.ParseFloat(string(str), 64)
	if err != nil {
		return fmt.Errorf("want integer, got %s", data)
	}
	*n = looseInt(math.Round(f))
	return nil
}

// urlList accepts a single url or a list of them.
type urlList []string

func (l *urlList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*l = list
		return nil
	}
	var single looseString
	if err := single.UnmarshalJSON(data); err != nil {
		return err
	}
	if single != "" {
		*l = urlList{string(single)}
	}
	return nil
}

func (l urlList) first() string {
	if len(l) == 0 {
		return ""
	}
	return l[0]
}

type videoFile struct {
	FileName     string      `json:"file_name"`
	PublicName   string      `json:"public_name"`
	BaseFileName string      `json:"base_file_name"`
	Extension    string      `json:"extension"`
	DownloadName string      `json:"download_name"`
	Size         looseString `json:"size"`
	Height       looseInt    `json:"height"`
	Width        looseInt    `json:"width"`
	VideoFileId  looseString `json:"video_file_id"`
	DownloadUrl  urlList     `json:"download_url"`
}

type downloadDataBody struct {
	DownloadConfig struct {
		Files []videoFile `json:"files"`
	} `json:"download_config"`
}

// highestQuality returns the index of the tallest file, the first one wins a tie.
func highestQuality(files []videoFile) int {
	if len(files) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(files); i++ {
		if files[i].Height > files[best].Height {
			best = i
		}
	}
	return best
}

func (f videoFile) toVideo(lesson catalog.Lesson) catalog.Video {
	return catalog.Video{
		FileName:     f.FileName,
		PublicName:   f.PublicName,
		BaseFileName: f.BaseFileName,
		Extension:    f.Extension,
		DownloadName: f.DownloadName,
		Size:         string(f.Size),
		Height:       int(f.Height),
		Width:        int(f.Width),
		VideoFileId:  string(f.VideoFileId),
		DownloadUrl:  f.DownloadUrl.first(),
		Lesson:       lesson,
	}
}

func (s *Spider) handleDownloadData(res *crawler.Response, st downloadData) (step, error) {
	var body downloadDataBody
	err := res.JSON(&body)
	if err != nil {
		return step{}, err
	}

	files := body.DownloadConfig.Files
	best := highestQuality(files)
	if best < 0 {
		return step{}, ErrNoVideoFiles
	}

	var out step
	out.save(files[best].toVideo(st.Lesson))
	return out, nil
}
