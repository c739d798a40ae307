package app

import "fmt"

// Blob key layout. Everything belonging to a vehicle lives under its
// listing prefix so a vehicle delete is a single prefix sweep.

func vehiclePrefix(vehicleID string) string {
	return fmt.Sprintf("listing/%s/", vehicleID)
}

func photoKey(vehicleID, filename string) string {
	return fmt.Sprintf("listing/%s/photos/%s", vehicleID, filename)
}

func receiptAttachmentKey(vehicleID, receiptID, filename string) string {
	return fmt.Sprintf("listing/%s/docs/receipts/%s/%s", vehicleID, receiptID, filename)
}

func maintenanceTableKey(vehicleID string) string {
	return fmt.Sprintf("listing/%s/docs/maintenanceTable.json", vehicleID)
}

func profilePhotoKey(memberID string) string {
	return fmt.Sprintf("members/%s/profilepicture.png", memberID)
}
