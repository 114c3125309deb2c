package kwp1281

// Block titles used over the KWP1281 K-line session.
const (
	titleClearDtcs       byte = 0x05
	titleQuit            byte = 0x06
	titleGetDtcs         byte = 0x07
	titleAck             byte = 0x09
	titleReadAdaptation  byte = 0x21
	titleTestAdaptation  byte = 0x22
	titleReadGroup       byte = 0x29
	titleWriteAdaptation byte = 0x2a
	titleAdaptationReply byte = 0xe6
	titleGroupReply      byte = 0xe7
	titleAscii           byte = 0xf6
	titleFaultCodes      byte = 0xfc
)

// Well-known ECU addresses used with the 5-baud init.
const (
	ECUEngine              byte = 0x01
	ECUTransmission        byte = 0x02
	ECUBrakes              byte = 0x03
	ECUHVAC                byte = 0x08
	ECUCluster             byte = 0x17
	ECUGateway             byte = 0x19
	ECUCentralConvenience  byte = 0x46
	ECURadio               byte = 0x56
	ECUParkingAid          byte = 0x76
)
