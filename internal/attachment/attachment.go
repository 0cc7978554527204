// Package attachment turns declarative attachment specs into ready-to-send files.
package attachment

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/devonik/email-api/internal/email"
)

// FormatCSV is the only supported attachment format.
const FormatCSV = "csv"

// defaultFilename is used when the spec does not name the file.
const defaultFilename = "list.csv"

var (
	ErrDataMissing    = fmt.Errorf("%w: attachment was given but attachment.data cannot be read", email.ErrInvalidRequest)
	ErrFormatInvalid  = fmt.Errorf("%w: cannot read attachment.data, has to be an object", email.ErrInvalidRequest)
	ErrOptionsInvalid = fmt.Errorf("%w: cannot read attachment.options, has to be an object", email.ErrInvalidRequest)
	ErrSerialization  = fmt.Errorf("%w: cannot serialize attachment.data", email.ErrInvalidRequest)
)

// Build converts spec into attachments. A nil spec yields no attachments.
// Unknown formats are logged and skipped without failing the send.
func Build(logger *slog.Logger, spec *email.AttachmentSpec) ([]email.Attachment, error) {
	if spec == nil {
		return nil, nil
	}
	logger.Info("attachment is set, building attachment", "format", spec.Format)

	if isAbsent(spec.Data) {
		return nil, ErrDataMissing
	}

	switch spec.Format {
	case FormatCSV:
		opts, err := parseOptions(spec.Options)
		if err != nil {
			return nil, err
		}
		if len(spec.Options) > 0 {
			logger.Info("attachment options are set, serializing with options",
				"fields", opts.Fields,
				"flatten", opts.Flatten,
			)
		}

		content, err := encodeCSV(spec.Data, opts)
		if err != nil {
			return nil, err
		}
		logger.Info("successfully built csv attachment", "bytes", len(content))

		return []email.Attachment{{
			Filename:    resolveFilename(spec.Filename, spec.Format),
			ContentType: "text/csv; charset=UTF-8",
			Content:     content,
		}}, nil

	default:
		logger.Warn("cannot read attachment.format, unknown format",
			"format", spec.Format,
			"filename", spec.Filename,
		)
		return nil, nil
	}
}

// resolveFilename keeps names that already carry an extension, appends the
// format otherwise and falls back to list.csv.
func resolveFilename(name, format string) string {
	switch {
	case strings.Contains(name, "."):
		return name
	case name != "":
		return name + "." + format
	default:
		return defaultFilename
	}
}
