package census

// CommonVariables maps frequently used ACS variable codes to descriptions.
var CommonVariables = map[string]string{
	// Population
	"B01001_001E": "Total Population",
	"B01002_001E": "Median Age",
	"B01003_001E": "Total Population (alternative)",

	// Economic
	"B19013_001E": "Median Household Income",
	"B19301_001E": "Per Capita Income",
	"B17001_002E": "Income Below Poverty Level",
	"B23025_005E": "Unemployment",

	// Housing
	"B25001_001E": "Total Housing Units",
	"B25002_002E": "Occupied Housing Units",
	"B25002_003E": "Vacant Housing Units",
	"B25077_001E": "Median Home Value",

	// Education
	"B15003_022E": "Bachelor's Degree",
	"B15003_023E": "Master's Degree",
	"B15003_024E": "Professional Degree",
	"B15003_025E": "Doctorate Degree",

	// Race & Ethnicity
	"B02001_002E": "White Alone",
	"B02001_003E": "Black or African American Alone",
	"B02001_004E": "American Indian and Alaska Native Alone",
	"B02001_005E": "Asian Alone",
	"B03001_003E": "Hispanic or Latino",
}

// StateFIPS maps US state names to their 2-digit FIPS codes.
var StateFIPS = map[string]string{
	"Alabama": "01", "Alaska": "02", "Arizona": "04", "Arkansas": "05",
	"California": "06", "Colorado": "08", "Connecticut": "09", "Delaware": "10",
	"Florida": "12", "Georgia": "13", "Hawaii": "15", "Idaho": "16",
	"Illinois": "17", "Indiana": "18", "Iowa": "19", "Kansas": "20",
	"Kentucky": "21", "Louisiana": "22", "Maine": "23", "Maryland": "24",
	"Massachusetts": "25", "Michigan": "26", "Minnesota": "27", "Mississippi": "28",
	"Missouri": "29", "Montana": "30", "Nebraska": "31", "Nevada": "32",
	"New Hampshire": "33", "New Jersey": "34", "New Mexico": "35", "New York": "36",
	"North Carolina": "37", "North Dakota": "38", "Ohio": "39", "Oklahoma": "40",
	"Oregon": "41", "Pennsylvania": "42", "Rhode Island": "44", "South Carolina": "45",
	"South Dakota": "46", "Tennessee": "47", "Texas": "48", "Utah": "49",
	"Vermont": "50", "Virginia": "51", "Washington": "53", "West Virginia": "54",
	"Wisconsin": "55", "Wyoming": "56", "District of Columbia": "11",
	"Puerto Rico": "72",
}
