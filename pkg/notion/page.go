package notion

import (
	"time"

	"discarch/internal/models"
)

// Database property names. These match the archive database's schema; the
// original board was set up with Spanish labels.
const (
	PropMessageID   = "Message ID"
	PropAuthor      = "Autor"
	PropDate        = "Fecha"
	PropServer      = "Servidor"
	PropChannel     = "Canal"
	PropContent     = "Contenido"
	PropAttachedURL = "URL adjunta"
	PropFiles       = "Archivo Adjunto"
	PropPreview     = "Vista Previa"
	PropMessageURL  = "URL del mensaje"
	PropReply       = "Replied message"
)

// BuildPageRequest translates a typed ArchivedRecord into the store's nested
// property wire shape. This is the single place the store's schema leaks into
// the codebase.
func BuildPageRequest(record *models.ArchivedRecord, databaseID string) *CreatePageRequest {
	properties := map[string]interface{}{
		PropMessageID:  titleProp(record.MessageID),
		PropAuthor:     richTextProp(record.Author),
		PropDate:       dateProp(record.Timestamp),
		PropServer:     selectProp(record.Server),
		PropChannel:    selectProp(record.Channel),
		PropContent:    richTextProp(record.Content),
		PropMessageURL: urlProp(record.MessageURL),
	}

	if record.AttachedURL != "" {
		properties[PropAttachedURL] = urlProp(record.AttachedURL)
	}
	if len(record.AttachedFiles) > 0 {
		properties[PropFiles] = FilesProperty(record.AttachedFiles)
	}
	if len(record.PreviewFiles) > 0 {
		properties[PropPreview] = FilesProperty(record.PreviewFiles)
	}
	if record.ReplyToPageID != "" {
		properties[PropReply] = relationProp(record.ReplyToPageID)
	}

	return &CreatePageRequest{
		Parent:     Parent{DatabaseID: databaseID},
		Properties: properties,
		Children:   buildChildren(record),
	}
}

// FilesProperty builds the store's files property from typed references:
// uploaded files by upload id, everything else as external URLs.
func FilesProperty(refs []models.FileRef) map[string]interface{} {
	files := make([]map[string]interface{}, 0, len(refs))
	for _, ref := range refs {
		if ref.Uploaded() {
			files = append(files, map[string]interface{}{
				"type":        "file_upload",
				"file_upload": map[string]interface{}{"id": ref.UploadID},
				"name":        ref.Name,
			})
		} else {
			files = append(files, map[string]interface{}{
				"type":     "external",
				"external": map[string]interface{}{"url": ref.URL},
				"name":     ref.Name,
			})
		}
	}
	return map[string]interface{}{"files": files}
}

// buildChildren renders the human-readable page body: the quoted content, a
// bulleted list of attachment names, and a link to the replied-to record.
// Presentation only; the canonical fields live in the properties.
func buildChildren(record *models.ArchivedRecord) []map[string]interface{} {
	var children []map[string]interface{}

	children = append(children, map[string]interface{}{
		"object": "block",
		"type":   "quote",
		"quote":  map[string]interface{}{"rich_text": richTextValue(record.Content)},
	})

	for _, ref := range record.AttachedFiles {
		children = append(children, map[string]interface{}{
			"object":             "block",
			"type":               "bulleted_list_item",
			"bulleted_list_item": map[string]interface{}{"rich_text": richTextValue(ref.Name)},
		})
	}

	if record.ReplyToURL != "" {
		children = append(children, map[string]interface{}{
			"object": "block",
			"type":   "paragraph",
			"paragraph": map[string]interface{}{
				"rich_text": []map[string]interface{}{
					{
						"type": "text",
						"text": map[string]interface{}{
							"content": "In reply to",
							"link":    map[string]interface{}{"url": record.ReplyToURL},
						},
					},
				},
			},
		})
	}

	return children
}

func titleProp(value string) map[string]interface{} {
	return map[string]interface{}{
		"title": []map[string]interface{}{
			{"text": map[string]interface{}{"content": value}},
		},
	}
}

func richTextProp(value string) map[string]interface{} {
	return map[string]interface{}{"rich_text": richTextValue(value)}
}

func richTextValue(value string) []map[string]interface{} {
	return []map[string]interface{}{
		{"type": "text", "text": map[string]interface{}{"content": value}},
	}
}

func dateProp(t time.Time) map[string]interface{} {
	return map[string]interface{}{
		"date": map[string]interface{}{"start": t.UTC().Format(time.RFC3339)},
	}
}

func selectProp(value string) map[string]interface{} {
	return map[string]interface{}{
		"select": map[string]interface{}{"name": value},
	}
}

func urlProp(value string) map[string]interface{} {
	return map[string]interface{}{"url": value}
}

func relationProp(pageID string) map[string]interface{} {
	return map[string]interface{}{
		"relation": []map[string]interface{}{{"id": pageID}},
	}
}
