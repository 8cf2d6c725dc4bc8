package wificmd

import "github.com/soypat/wificmd/wlan"

// resolveFeatures narrows the requested features to what drv supports.
// Drivers that do not report features are trusted with the full request.
// iTWT negotiation is an 802.11ax feature and is dropped without HE.
func resolveFeatures(want wlan.Features, drv wlan.Driver) wlan.Features {
	if fr, ok := drv.(wlan.FeatureReporter); ok {
		want &= fr.Features()
	}
	if !want.Has(wlan.FeatureHE) {
		want &^= wlan.FeatureITWT
	}
	return want
}
