// Copyright 2021 PingCAP, Inc. Licensed under Apache-2.0.

package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pingcap/errors"
)

// associationLoader attaches Active Storage attachments and Action Text
// bodies to the records of one model.
type associationLoader struct {
	q        queryer
	d        dialect
	model    string
	hasOne   []string
	hasMany  []string
	richText []string
	blobs    BlobService
}

// newAssociationLoader returns nil when no association is declared for model.
// Declarations are `name` for every model or `Model.name` for one model.
func newAssociationLoader(q queryer, d dialect, conf *Config, model string) *associationLoader {
	l := &associationLoader{
		q:        q,
		d:        d,
		model:    model,
		hasOne:   associationsOf(conf.HasOneAttached, model),
		hasMany:  associationsOf(conf.HasManyAttached, model),
		richText: associationsOf(conf.RichText, model),
		blobs:    conf.BlobService,
	}
	if len(l.hasOne)+len(l.hasMany)+len(l.richText) == 0 {
		return nil
	}
	return l
}

func associationsOf(decls []string, model string) []string {
	var names []string
	for _, decl := range decls {
		decl = strings.TrimSpace(decl)
		if idx := strings.LastIndexByte(decl, '.'); idx >= 0 {
			if decl[:idx] != model {
				continue
			}
			decl = decl[idx+1:]
		}
		if decl != "" {
			names = append(names, decl)
		}
	}
	return names
}

func (l *associationLoader) names() []string {
	names := make([]string, 0, len(l.hasOne)+len(l.hasMany)+len(l.richText))
	names = append(names, l.hasOne...)
	names = append(names, l.hasMany...)
	return append(names, l.richText...)
}

// load sets the association attributes of records, keyed by idColumn.
func (l *associationLoader) load(ctx context.Context, records []Record, idColumn string) error {
	ids := make([]interface{}, 0, len(records))
	keys := make([]string, len(records))
	for i, r := range records {
		v, _ := r.Get(idColumn)
		keys[i] = valueText(v)
		ids = append(ids, v.Interface())
	}

	for _, name := range l.hasOne {
		attached, err := l.queryAttachments(ctx, name, ids)
		if err != nil {
			return err
		}
		for i := range records {
			var a *Attachment
			if as := attached[keys[i]]; len(as) > 0 {
				a = as[0]
			}
			records[i].Set(name, AttachmentValue(a))
		}
	}
	for _, name := range l.hasMany {
		attached, err := l.queryAttachments(ctx, name, ids)
		if err != nil {
			return err
		}
		for i := range records {
			as := attached[keys[i]]
			if as == nil {
				as = []*Attachment{}
			}
			records[i].Set(name, AttachmentsValue(as))
		}
	}
	for _, name := range l.richText {
		bodies, err := l.queryRichTexts(ctx, name, ids)
		if err != nil {
			return err
		}
		for i := range records {
			var rt *RichText
			if body, ok := bodies[keys[i]]; ok {
				rt = &RichText{Body: body}
			}
			records[i].Set(name, RichTextValue(rt))
		}
	}
	return nil
}

func (l *associationLoader) queryAttachments(ctx context.Context, name string, ids []interface{}) (map[string][]*Attachment, error) {
	query := fmt.Sprintf("SELECT a.record_id, b.%s, b.filename, b.content_type FROM active_storage_attachments a JOIN active_storage_blobs b ON b.id = a.blob_id WHERE a.record_type = %s AND a.name = %s AND a.record_id IN (%s) ORDER BY a.id",
		l.d.quoteIdent("key"), l.d.placeholder(1), l.d.placeholder(2), placeholders(l.d, 3, len(ids)))
	args := append([]interface{}{l.model, name}, ids...)

	attached := make(map[string][]*Attachment)
	handleOneRow := func(rows *sql.Rows) error {
		var (
			recordID    interface{}
			key         string
			filename    string
			contentType sql.NullString
		)
		if err := rows.Scan(&recordID, &key, &filename, &contentType); err != nil {
			return err
		}
		id := recordIDKey(recordID)
		attached[id] = append(attached[id], &Attachment{
			Filename:    filename,
			ContentType: contentType.String,
			Key:         key,
			Service:     l.blobs,
		})
		return nil
	}
	if err := simpleQuery(ctx, l.q, query, handleOneRow, args...); err != nil {
		return nil, errors.Annotatef(err, "sql: %s", query)
	}
	return attached, nil
}

func (l *associationLoader) queryRichTexts(ctx context.Context, name string, ids []interface{}) (map[string]string, error) {
	query := fmt.Sprintf("SELECT record_id, body FROM action_text_rich_texts WHERE record_type = %s AND name = %s AND record_id IN (%s)",
		l.d.placeholder(1), l.d.placeholder(2), placeholders(l.d, 3, len(ids)))
	args := append([]interface{}{l.model, name}, ids...)

	bodies := make(map[string]string)
	handleOneRow := func(rows *sql.Rows) error {
		var (
			recordID interface{}
			body     sql.NullString
		)
		if err := rows.Scan(&recordID, &body); err != nil {
			return err
		}
		bodies[recordIDKey(recordID)] = body.String
		return nil
	}
	if err := simpleQuery(ctx, l.q, query, handleOneRow, args...); err != nil {
		return nil, errors.Annotatef(err, "sql: %s", query)
	}
	return bodies, nil
}

func recordIDKey(raw interface{}) string {
	switch v := raw.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return valueText(ValueOf(v))
	}
}
