package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeServerTXT creates the TXT records of a server announcement.
func EncodeServerTXT(info *ServerInfo) TXTRecordMap {
	txt := make(TXTRecordMap)
	txt[TXTKeyObject] = info.Object

	if info.PID > 0 {
		txt[TXTKeyPID] = strconv.Itoa(info.PID)
	}
	if info.Version > 0 {
		txt[TXTKeyVersion] = strconv.Itoa(info.Version)
	}
	return txt
}

// DecodeServerTXT parses the TXT records of a server announcement into
// info.
func DecodeServerTXT(txt TXTRecordMap, info *ServerInfo) error {
	obj, ok := txt[TXTKeyObject]
	if !ok || obj == "" {
		return fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyObject)
	}
	info.Object = obj

	if s, ok := txt[TXTKeyPID]; ok {
		pid, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyPID, s)
		}
		info.PID = pid
	}
	if s, ok := txt[TXTKeyVersion]; ok {
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyVersion, s)
		}
		info.Version = v
	}
	return nil
}

// TXTRecordsToStrings converts a TXTRecordMap to a slice of "key=value" strings.
// This format is commonly used by mDNS libraries.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, found := strings.Cut(s, "=")
		if found {
			txt[k] = v
		} else if k != "" {
			// Key without value (boolean flag)
			txt[k] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
