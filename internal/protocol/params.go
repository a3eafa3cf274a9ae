package protocol

// Parameter shapes, one per operation. Field names are the wire names.

// ClickParams moves the pointer to (X, Y) and presses Button.
type ClickParams struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Button string `json:"button,omitempty"`
}

// Mouse buttons accepted by click.
const (
	ButtonLeft   = "left"
	ButtonRight  = "right"
	ButtonMiddle = "middle"
)

// SendKeysParams types Keys, optionally into the window titled TargetWindow.
type SendKeysParams struct {
	Keys         string `json:"keys"`
	TargetWindow string `json:"targetWindow,omitempty"`
}

// RegistryReadParams reads ValueName under KeyPath.
type RegistryReadParams struct {
	KeyPath   string `json:"keyPath"`
	ValueName string `json:"valueName"`
}

// RegistryWriteParams writes Value to ValueName under KeyPath.
type RegistryWriteParams struct {
	KeyPath   string      `json:"keyPath"`
	ValueName string      `json:"valueName"`
	Value     interface{} `json:"value"`
}

// ProcessStartParams launches FileName with optional Arguments in WorkingDirectory.
type ProcessStartParams struct {
	FileName         string `json:"fileName"`
	Arguments        string `json:"arguments,omitempty"`
	WorkingDirectory string `json:"workingDirectory,omitempty"`
}

// ProcessTerminateParams stops the process with ProcessID.
type ProcessTerminateParams struct {
	ProcessID int `json:"processId"`
}

// Content encodings accepted by fileRead and fileWrite.
const (
	EncodingUTF8   = "utf-8"
	EncodingBase64 = "base64"
)

// FileReadParams reads FilePath; Encoding selects the content representation.
type FileReadParams struct {
	FilePath string `json:"filePath"`
	Encoding string `json:"encoding,omitempty"`
}

// FileWriteParams writes Content to FilePath.
type FileWriteParams struct {
	FilePath string `json:"filePath"`
	Content  string `json:"content"`
	Encoding string `json:"encoding,omitempty"`
}

// EmptyParams is the shape of operations that take no input
// (takeScreenshot, getWindows).
type EmptyParams struct{}

// Result shapes, one per operation.

// ClickResult echoes the performed click.
type ClickResult struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Button string `json:"button"`
}

// SendKeysResult reports how many keys were delivered.
type SendKeysResult struct {
	KeysSent int `json:"keysSent"`
}

// WindowBounds is a window's screen rectangle.
type WindowBounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// WindowInfo describes one top-level window.
type WindowInfo struct {
	Handle      uint64       `json:"handle"`
	Title       string       `json:"title"`
	ClassName   string       `json:"className"`
	ProcessID   int          `json:"processId"`
	ProcessName string       `json:"processName"`
	IsVisible   bool         `json:"isVisible"`
	Bounds      WindowBounds `json:"bounds"`
}

// WindowsResult lists the visible top-level windows.
type WindowsResult struct {
	Windows []WindowInfo `json:"windows"`
}

// RegistryReadResult carries a read registry value.
type RegistryReadResult struct {
	KeyPath   string      `json:"keyPath"`
	ValueName string      `json:"valueName"`
	Value     interface{} `json:"value"`
}

// RegistryWriteResult confirms a registry write.
type RegistryWriteResult struct {
	Written bool `json:"written"`
}

// ProcessStartResult carries the started process id.
type ProcessStartResult struct {
	ProcessID int `json:"processId"`
}

// ProcessTerminateResult confirms a termination.
type ProcessTerminateResult struct {
	Terminated bool `json:"terminated"`
}

// FileReadResult carries file content in the requested encoding.
type FileReadResult struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// FileWriteResult reports how many bytes were written.
type FileWriteResult struct {
	BytesWritten int `json:"bytesWritten"`
}

// ScreenshotResult carries a captured frame.
type ScreenshotResult struct {
	ImageBase64 string `json:"imageBase64"`
	Format      string `json:"format"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}
