package ui

// iconBytes is a 16x16 PNG of a film frame.
var iconBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff, 0x61, 0x00, 0x00, 0x00,
	0x1a, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda, 0x63, 0x60, 0x18, 0x05, 0x70,
	0xa0, 0xa1, 0xa1, 0xf1, 0x9f, 0x14, 0x3c, 0x6a, 0xc0, 0xf0, 0x34, 0x60,
	0x04, 0x03, 0x00, 0x40, 0xd3, 0x8c, 0xa1, 0xfd, 0x46, 0x0d, 0xe6, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}
