package codec

// CRC-16/CCITT-FALSE: poly 0x1021, init 0xFFFF, no reflection, no final xor

const (
	crc16Poly uint16 = 0x1021
	crc16Init uint16 = 0xFFFF
)

var crc16Table = makeCRC16Table()

func makeCRC16Table() (t [256]uint16) {
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ crc16Poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

// Checksum returns the CRC-16 of data
func Checksum(data []byte) uint16 {
	crc := crc16Init
	for _, b := range data {
		crc = crc<<8 ^ crc16Table[byte(crc>>8)^b]
	}
	return crc
}
