// Package style loads map descriptions written in a Mapnik-flavoured XML
// dialect.
//
// A [Map] holds named [Style]s made of [Rule]s, and an ordered list of
// [Layer]s that reference styles by name and describe where their features
// come from:
//
//	<Map srs="+init=epsg:3857" background-color="#b5d0d0">
//	  <Style name="roads">
//	    <Rule>
//	      <Filter>[highway] = 'primary'</Filter>
//	      <MaxScaleDenominator>500000</MaxScaleDenominator>
//	      <LineSymbolizer stroke="#f9b29c" stroke-width="3"/>
//	    </Rule>
//	  </Style>
//	  <Layer name="roads" srs="+init=epsg:4326">
//	    <StyleName>roads</StyleName>
//	    <Datasource>
//	      <Parameter name="type">geojson</Parameter>
//	      <Parameter name="file">roads.geojson</Parameter>
//	    </Datasource>
//	  </Layer>
//	</Map>
//
// Supported symbolizers are polygons, lines, markers and text. Filters and
// text labels use the small expression language implemented by [ParseExpr].
package style
