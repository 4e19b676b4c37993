// Package geo holds the value types that describe a render job: pixel sizes,
// map envelopes and the print command that ties them to a scale factor.
//
// # Print Geometry
//
// [BuildCommand] turns a physical print request (centre, paper size in
// millimetres, DPI and either a zoom level or a scale denominator) into a
// [Command]: the pixel size to render, the envelope in Web Mercator metres
// and the scale factor applied to symbol widths.
//
// The conversion follows the OGC "standardized rendering pixel" of 0.28 mm,
// so a scale factor of 1 corresponds to roughly 90.7 DPI.
//
// # File Names
//
// [FileName] builds output names of the form
//
//	<style>-<width>-<height>-[<tilesX>x<tilesY>-]<scale>-<renderer><ext>
//
// where width and height are the logical size (pixel size divided by the
// scale factor).
package geo
