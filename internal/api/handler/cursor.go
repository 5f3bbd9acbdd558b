package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/escrow-be/internal/api/storage"
)

func DecodeSubmissionCursor(cursorStr string) (*storage.SubmissionCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	decodedParts := strings.Split(string(decoded), "|")
	if len(decodedParts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var createdAt int64
	_, err = fmt.Sscanf(decodedParts[0], "%d", &createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	return &storage.SubmissionCursor{
		CreatedAt:    time.Unix(0, createdAt),
		SubmissionID: decodedParts[1],
	}, nil
}

func EncodeSubmissionCursor(cursor *storage.SubmissionCursor) (string, error) {
	cs := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.SubmissionID)
	return base64.StdEncoding.EncodeToString([]byte(cs)), nil
}
