package model

// State is the lifecycle of one uploader instance.
// Go doesn't have enums — we use typed constants with explicit values.
type State string

const (
	StateIdle         State = "idle"
	StateFileSelected State = "file_selected"
	StateCropping     State = "cropping"
	StateUploading    State = "uploading"
)

// UploaderConfig is the configuration object a form hands to an uploader.
//
//   - MaxFiles blocks new selections once the gallery holds that many files
//     (0 means unlimited)
//   - AspectRatio constrains the crop rectangle (0 means free-form)
//   - FileMetadata is passed through to the upload service untouched
type UploaderConfig struct {
	Title        string       `mapstructure:"title" yaml:"title"`
	MaxFiles     int          `mapstructure:"max_files" yaml:"max_files"`
	AspectRatio  float64      `mapstructure:"aspect_ratio" yaml:"aspect_ratio"`
	FileMetadata FileMetadata `mapstructure:"file_metadata" yaml:"file_metadata"`
}
