package constants

// ImageExtensions are the file extensions routed to the record's preview
// field in addition to the generic attachment list.
var ImageExtensions = []string{"jpg", "jpeg", "png", "gif", "webp", "bmp", "svg", "tiff", "tif"}

// ExtensionMimeTypes maps common attachment extensions to mime types for the
// cases where the source does not report one.
var ExtensionMimeTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"svg":  "image/svg+xml",
	"tiff": "image/tiff",
	"tif":  "image/tiff",
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"mov":  "video/quicktime",
	"mp3":  "audio/mpeg",
	"ogg":  "audio/ogg",
	"wav":  "audio/wav",
	"pdf":  "application/pdf",
	"txt":  "text/plain",
	"zip":  "application/zip",
	"json": "application/json",
}
