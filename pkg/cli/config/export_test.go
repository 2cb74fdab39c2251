package config

// NewGeminiForTest creates a Gemini config for testing purposes
func NewGeminiForTest(projectID, location string) *Gemini {
	return &Gemini{
		projectID: projectID,
		location:  location,
	}
}

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{
		level:  level,
		format: format,
		output: output,
	}
}

// NewAppConfigForTest creates an AppConfig pointing at path
func NewAppConfigForTest(path string) *AppConfig {
	return &AppConfig{path: path}
}

// NewPhotoForTest creates a Photo config for testing purposes
func NewPhotoForTest(bucket string) *Photo {
	return &Photo{bucket: bucket, prefix: "photos"}
}

// NewSentryForTest creates a Sentry config for testing purposes
func NewSentryForTest(dsn string) *Sentry {
	return &Sentry{dsn: dsn, environment: "test"}
}
