package usbi2c

// Well known slave addresses of common I2C parts, used to annotate bus
// scan results. Many addresses are shared between parts; the name lists
// the usual suspects.
var knownDevices = map[byte]string{
	0x1D: "ADXL345",
	0x20: "PCF8574",
	0x23: "BH1750",
	0x27: "PCF8574 (LCD)",
	0x3C: "SSD1306",
	0x40: "INA219/HTU21D",
	0x48: "ADS1115/LM75",
	0x50: "AT24 EEPROM",
	0x51: "AT24 EEPROM/PCF8563",
	0x52: "AT24 EEPROM",
	0x53: "ADXL345/AT24 EEPROM",
	0x57: "AT24 EEPROM",
	0x68: "DS1307/DS3231/MPU-6050",
	0x76: "BME280/BMP280",
	0x77: "BME280/BMP180",
}

// KnownDeviceName returns the part name(s) commonly found at an I2C
// address, or an empty string.
func KnownDeviceName(address byte) string {
	return knownDevices[address&MaxAddress]
}

// Reserved I2C addresses: 0x00-0x07 (general call, CBUS, reserved) and
// 0x78-0x7F (10-bit addressing, reserved). Bus scanners skip them.
func AddressReserved(address byte) bool {
	address &= MaxAddress
	return address < 0x08 || address > 0x77
}
