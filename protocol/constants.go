package protocol

// Frame structure constants.
const (
	// ProtocolID is the first byte of every frame (0x6b)
	ProtocolID = 0x6b

	// DefaultVersion is the protocol version sent in request headers
	DefaultVersion = 0

	// DefaultIndex is the frame index sent in request headers
	DefaultIndex = 0

	// DefaultFlag is the header flag sent in request headers (big-endian on the wire)
	DefaultFlag = 1

	// HeaderSize is the fixed frame header size in bytes:
	// PROTO(1) + VERSION(1) + INDEX(2) + SERVICE(1) + COMMAND(1) + FLAG(2) + LEN(2)
	HeaderSize = 10

	// ChecksumSize is the size of the trailing CRC32
	ChecksumSize = 4

	// UnitSize is the primitive transport unit (one USB bulk packet)
	UnitSize = 64

	// MaxPayloadSize is the largest payload the 16-bit length field can describe
	MaxPayloadSize = 0xFFFF
)

// Header field offsets.
const (
	offsetProtocol = 0
	offsetVersion  = 1
	offsetIndex    = 2
	offsetService  = 4
	offsetCommand  = 5
	offsetFlag     = 6
	offsetLength   = 8
)

// TLV length encoding limits.
const (
	// MaxShortLength is the largest value length encoded with a single length byte
	MaxShortLength = 0x7F

	// MaxValueLength is the largest value length the two-byte form can carry
	MaxValueLength = 0x7FFF

	// longLengthFlag marks the first length byte of the two-byte form
	longLengthFlag = 0x80
)

// Service identifiers.
const (
	// ServiceDeviceInfo answers identification queries
	ServiceDeviceInfo = 1

	// ServiceFileTransfer receives files in chunks
	ServiceFileTransfer = 2
)

// Device info commands and tags.
const (
	// CmdDeviceInfoBasic returns model, serial and version strings
	CmdDeviceInfoBasic = 1

	TagDeviceModel           = 1
	TagDeviceSerialNumber    = 2
	TagDeviceHardwareVersion = 3
	TagDeviceFirmwareVersion = 4
)

// File transfer commands.
const (
	// CmdFileTransferInfo announces name, size, digest and signature
	CmdFileTransferInfo = 1

	// CmdFileTransferContent carries one block of file data
	CmdFileTransferContent = 2

	// CmdFileTransferComplete tells the device the transfer is finished
	CmdFileTransferComplete = 3
)

// File transfer request tags.
const (
	TagFileName      = 1
	TagFileSize      = 2
	TagFileMD5       = 3
	TagFileSignature = 4

	TagFileOffset = 1
	TagFileData   = 2
)

// Response tags.
const (
	// TagAck carries a 4-byte little-endian status code (0 = success)
	TagAck = 0xFF

	// TagFileContentAck is a bare acknowledgment of a content block
	TagFileContentAck = 3

	// AckValueSize is the expected size of the TagAck value
	AckValueSize = 4
)

// DefaultBlockSize is the file transfer block size used by the uploader.
const DefaultBlockSize = 4096
