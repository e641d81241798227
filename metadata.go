package fireblob

import "time"

// ObjectMetadata is the metadata document the REST API keeps per object.
// The API encodes numeric fields as JSON strings; the struct tags account
// for that.
type ObjectMetadata struct {
	Name               string            `json:"name"`
	Bucket             string            `json:"bucket"`
	Generation         string            `json:"generation"`
	Metageneration     string            `json:"metageneration"`
	ContentType        string            `json:"contentType"`
	TimeCreated        time.Time         `json:"timeCreated"`
	Updated            time.Time         `json:"updated"`
	StorageClass       string            `json:"storageClass"`
	Size               int64             `json:"size,string"`
	MD5Hash            string            `json:"md5Hash"`
	ContentEncoding    string            `json:"contentEncoding"`
	ContentDisposition string            `json:"contentDisposition"`
	ContentLanguage    string            `json:"contentLanguage"`
	CacheControl       string            `json:"cacheControl"`
	CRC32C             string            `json:"crc32c"`
	ETag               string            `json:"etag"`
	DownloadTokens     string            `json:"downloadTokens"`
	CustomMetadata     map[string]string `json:"metadata"`
}
