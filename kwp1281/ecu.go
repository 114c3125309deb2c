package kwp1281

var ecuNames = map[byte]string{
	ECUEngine:             "engine",
	ECUTransmission:       "transmission",
	ECUBrakes:             "brakes",
	ECUHVAC:               "hvac",
	ECUCluster:            "cluster",
	ECUGateway:            "gateway",
	ECUCentralConvenience: "central convenience",
	ECURadio:              "radio",
	ECUParkingAid:         "parking aid",
}

// ECUName returns a human-readable name for one of the well-known ECU
// addresses, or "" if addr is not one of them.
func ECUName(addr byte) string { return ecuNames[addr] }
