package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (s *Settings) Validate() []ValidationError {
	var errors []ValidationError

	if s.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if s.MaxFileSizeMB < 1 {
		errors = append(errors, ValidationError{
			Field:   "max_file_size_mb",
			Message: "max_file_size_mb must be positive",
		})
	}

	if s.Temperature < 0 || s.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if _, err := logrus.ParseLevel(s.LogLevel); err != nil {
		errors = append(errors, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("unknown log level: %s", s.LogLevel),
		})
	}

	if s.VectorStorePath == "" {
		errors = append(errors, ValidationError{
			Field:   "vector_store_path",
			Message: "vector_store_path is required",
		})
	}

	if s.UploadDirectory == "" {
		errors = append(errors, ValidationError{
			Field:   "upload_directory",
			Message: "upload_directory is required",
		})
	}

	return errors
}
