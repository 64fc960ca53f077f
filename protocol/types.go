package protocol

// Header is the fixed 10-byte frame header.
type Header struct {
	// ProtocolID must be ProtocolID (0x6b)
	ProtocolID byte

	// Version is the protocol version
	Version byte

	// Index is the frame index (little-endian on the wire)
	Index uint16

	// ServiceID selects the device service
	ServiceID byte

	// CommandID selects the command within the service
	CommandID byte

	// Flag is the header flag word (big-endian on the wire)
	Flag uint16

	// PayloadLength is the length of the TLV payload (little-endian on the wire)
	PayloadLength uint16
}

// Frame is one complete protocol message as received from the device.
type Frame struct {
	Header Header

	// Payload is the raw TLV payload
	Payload []byte

	// Checksum is the trailing CRC32 as received
	Checksum uint32

	// Fields is the decoded TLV payload
	Fields Fields
}

// DeviceInfo contains device identification strings.
// Returned by the device info service.
type DeviceInfo struct {
	// Model is the device model identifier (e.g. "Kv3A")
	Model string

	// SerialNumber is the device serial number
	SerialNumber string

	// HardwareVersion is the board revision
	HardwareVersion string

	// FirmwareVersion is the running firmware version (e.g. "1.2.4")
	FirmwareVersion string
}

// ParseDeviceInfo extracts identification strings from a device info response.
// Missing tags are left empty.
func ParseDeviceInfo(f Fields) *DeviceInfo {
	info := &DeviceInfo{}
	info.Model, _ = f.String(TagDeviceModel)
	info.SerialNumber, _ = f.String(TagDeviceSerialNumber)
	info.HardwareVersion, _ = f.String(TagDeviceHardwareVersion)
	info.FirmwareVersion, _ = f.String(TagDeviceFirmwareVersion)
	return info
}
