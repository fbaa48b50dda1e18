package geo

// defaultCities covers the cities that show up most in tenant sign-in
// exports. Keys are "city|CC".
var defaultCities = map[string]Coordinates{
	// Oceania
	"Melbourne|AU":  {-37.8136, 144.9631},
	"Sydney|AU":     {-33.8688, 151.2093},
	"Brisbane|AU":   {-27.4698, 153.0251},
	"Perth|AU":      {-31.9505, 115.8605},
	"Adelaide|AU":   {-34.9285, 138.6007},
	"Canberra|AU":   {-35.2809, 149.1300},
	"Hobart|AU":     {-42.8821, 147.3272},
	"Darwin|AU":     {-12.4634, 130.8456},
	"Auckland|NZ":   {-36.8485, 174.7633},
	"Wellington|NZ": {-41.2865, 174.7762},

	// Asia
	"Singapore|SG":        {1.3521, 103.8198},
	"Hong Kong|HK":        {22.3193, 114.1694},
	"Tokyo|JP":            {35.6762, 139.6503},
	"Osaka|JP":            {34.6937, 135.5023},
	"Seoul|KR":            {37.5665, 126.9780},
	"Beijing|CN":          {39.9042, 116.4074},
	"Shanghai|CN":         {31.2304, 121.4737},
	"Shenzhen|CN":         {22.5431, 114.0579},
	"Guangzhou|CN":        {23.1291, 113.2644},
	"Taipei|TW":           {25.0330, 121.5654},
	"Mumbai|IN":           {19.0760, 72.8777},
	"Delhi|IN":            {28.7041, 77.1025},
	"Bangalore|IN":        {12.9716, 77.5946},
	"Jakarta|ID":          {-6.2088, 106.8456},
	"Manila|PH":           {14.5995, 120.9842},
	"Bangkok|TH":          {13.7563, 100.5018},
	"Kuala Lumpur|MY":     {3.1390, 101.6869},
	"Ho Chi Minh City|VN": {10.8231, 106.6297},
	"Hanoi|VN":            {21.0278, 105.8342},
	"Dubai|AE":            {25.2048, 55.2708},
	"Tehran|IR":           {35.6892, 51.3890},
	"Pyongyang|KP":        {39.0392, 125.7625},
	"Karachi|PK":          {24.8607, 67.0011},
	"Dhaka|BD":            {23.8103, 90.4125},

	// Europe
	"London|GB":           {51.5074, -0.1278},
	"Manchester|GB":       {53.4808, -2.2426},
	"Dublin|IE":           {53.3498, -6.2603},
	"Paris|FR":            {48.8566, 2.3522},
	"Berlin|DE":           {52.5200, 13.4050},
	"Frankfurt|DE":        {50.1109, 8.6821},
	"Amsterdam|NL":        {52.3676, 4.9041},
	"Brussels|BE":         {50.8503, 4.3517},
	"Madrid|ES":           {40.4168, -3.7038},
	"Rome|IT":             {41.9028, 12.4964},
	"Milan|IT":            {45.4642, 9.1900},
	"Zurich|CH":           {47.3769, 8.5417},
	"Vienna|AT":           {48.2082, 16.3738},
	"Stockholm|SE":        {59.3293, 18.0686},
	"Oslo|NO":             {59.9139, 10.7522},
	"Copenhagen|DK":       {55.6761, 12.5683},
	"Helsinki|FI":         {60.1699, 24.9384},
	"Warsaw|PL":           {52.2297, 21.0122},
	"Prague|CZ":           {50.0755, 14.4378},
	"Bucharest|RO":        {44.4268, 26.1025},
	"Kyiv|UA":             {50.4501, 30.5234},
	"Minsk|BY":            {53.9006, 27.5590},
	"Moscow|RU":           {55.7558, 37.6173},
	"Saint Petersburg|RU": {59.9311, 30.3609},
	"Istanbul|TR":         {41.0082, 28.9784},
	"Lisbon|PT":           {38.7223, -9.1393},

	// Americas
	"New York|US":      {40.7128, -74.0060},
	"Los Angeles|US":   {34.0522, -118.2437},
	"San Francisco|US": {37.7749, -122.4194},
	"Seattle|US":       {47.6062, -122.3321},
	"Chicago|US":       {41.8781, -87.6298},
	"Dallas|US":        {32.7767, -96.7970},
	"Ashburn|US":       {39.0438, -77.4874},
	"Miami|US":         {25.7617, -80.1918},
	"Toronto|CA":       {43.6532, -79.3832},
	"Vancouver|CA":     {49.2827, -123.1207},
	"Montreal|CA":      {45.5017, -73.5673},
	"Mexico City|MX":   {19.4326, -99.1332},
	"Sao Paulo|BR":     {-23.5505, -46.6333},
	"Buenos Aires|AR":  {-34.6037, -58.3816},
	"Santiago|CL":      {-33.4489, -70.6693},
	"Bogota|CO":        {4.7110, -74.0721},
	"Lima|PE":          {-12.0464, -77.0428},
	"Caracas|VE":       {10.4806, -66.9036},
	"Havana|CU":        {23.1136, -82.3666},

	// Africa and Middle East
	"Lagos|NG":        {6.5244, 3.3792},
	"Abuja|NG":        {9.0765, 7.3986},
	"Johannesburg|ZA": {-26.2041, 28.0473},
	"Cape Town|ZA":    {-33.9249, 18.4241},
	"Cairo|EG":        {30.0444, 31.2357},
	"Nairobi|KE":      {-1.2921, 36.8219},
	"Tel Aviv|IL":     {32.0853, 34.7818},
	"Riyadh|SA":       {24.7136, 46.6753},
	"Damascus|SY":     {33.5138, 36.2765},
}

// defaultCountries holds approximate country centroids, keyed by ISO 3166-1
// alpha-2 code.
var defaultCountries = map[string]Coordinates{
	"US": {39.8, -98.5}, "CN": {35.9, 104.2}, "IN": {20.6, 78.9},
	"BR": {-14.2, -51.9}, "RU": {61.5, 105.3}, "JP": {36.2, 138.3},
	"DE": {51.2, 10.5}, "GB": {55.4, -3.4}, "FR": {46.2, 2.2},
	"KR": {35.9, 127.8}, "CA": {56.1, -106.3}, "IT": {41.9, 12.6},
	"AU": {-25.3, 133.8}, "ES": {40.5, -3.7}, "MX": {23.6, -102.6},
	"ID": {-0.8, 113.9}, "NL": {52.1, 5.3}, "TR": {39.0, 35.2},
	"SA": {23.9, 45.1}, "CH": {46.8, 8.2}, "PL": {51.9, 19.1},
	"SE": {60.1, 18.6}, "BE": {50.5, 4.5}, "TH": {15.9, 100.9},
	"AT": {47.5, 14.6}, "NO": {60.5, 8.5}, "IL": {31.0, 34.9},
	"NG": {9.1, 8.7}, "ZA": {-30.6, 22.9}, "AR": {-38.4, -63.6},
	"EG": {26.8, 30.8}, "PH": {12.9, 121.8}, "MY": {4.2, 101.9},
	"SG": {1.4, 103.8}, "AE": {23.4, 53.8}, "IE": {53.1, -8.2},
	"DK": {56.3, 9.5}, "FI": {61.9, 25.7}, "PT": {39.4, -8.2},
	"CZ": {49.8, 15.5}, "RO": {45.9, 25.0}, "NZ": {-40.9, 174.9},
	"CL": {-35.7, -71.5}, "CO": {4.6, -74.3}, "UA": {48.4, 31.2},
	"PK": {30.4, 69.3}, "VN": {14.1, 108.3}, "HK": {22.4, 114.1},
	"TW": {23.7, 121.0}, "BD": {23.7, 90.4}, "PE": {-9.2, -75.0},
	"IR": {32.4, 53.7}, "KP": {40.3, 127.5}, "BY": {53.7, 27.9},
	"SY": {34.8, 38.9}, "VE": {6.4, -66.6}, "CU": {21.5, -77.8},
	"KE": {-0.0, 37.9}, "GR": {39.1, 21.8}, "HU": {47.2, 19.5},
	"KZ": {48.0, 66.9}, "MA": {31.8, -7.1}, "QA": {25.4, 51.2},
}
