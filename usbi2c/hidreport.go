package usbi2c

import (
	"fmt"
	"time"

	"github.com/3cky/usbi2c/usbtransport"
)

// HID class requests shared by the CP2112 and FT260 adapters. Feature
// reports travel as class control transfers on endpoint zero, data
// reports over the interrupt endpoints.
const (
	hidRequestGetReport byte = 0x01
	hidRequestSetReport byte = 0x09

	hidReportTypeFeature uint16 = 0x03

	// Largest report any supported HID bridge uses, including the
	// report ID byte.
	hidMaxReportSize = 64
)

func (s *session) getFeatureReport(reportID byte, buf []byte) error {
	return s.controlRead(
		usbtransport.DirIn|usbtransport.TypeClass|usbtransport.RecipInterface,
		hidRequestGetReport, hidReportTypeFeature<<8|uint16(reportID), 0, buf)
}

// setFeatureReport sends buf as a feature report; buf[0] is the report ID.
func (s *session) setFeatureReport(buf []byte) error {
	return s.controlWrite(
		usbtransport.DirOut|usbtransport.TypeClass|usbtransport.RecipInterface,
		hidRequestSetReport, hidReportTypeFeature<<8|uint16(buf[0]), 0, buf)
}

func (s *session) sendDataReport(buf []byte) error {
	return s.bulkWrite(buf)
}

// readDataReport reads one data report into buf within the given timeout.
func (s *session) readDataReport(buf []byte, timeout time.Duration) error {
	n, err := s.tr.BulkTransfer(true, buf, timeout)
	if err != nil {
		return fmt.Errorf("%w: data report read: %v", ErrorTransport, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: empty data report", ErrorTransport)
	}
	return nil
}
