package schema

// The standard catalogue: the common HL7 v2.5 segments, fields, and
// tables this server ships with. Overlays layer on top of these entries;
// they are never mutated at runtime.

func stdTable(entries ...TableEntry) *Table {
	return &Table{Entries: entries}
}

func standardSegments() map[string]Segment {
	return map[string]Segment{
		"MSH": {
			Name:        "MSH",
			Description: "Message Header",
			Fields: map[int]Field{
				1:  {Description: "Field Separator", Datatype: "ST", Required: true},
				2:  {Description: "Encoding Characters", Datatype: "ST", Required: true},
				3:  {Description: "Sending Application", Datatype: "HD"},
				4:  {Description: "Sending Facility", Datatype: "HD"},
				5:  {Description: "Receiving Application", Datatype: "HD"},
				6:  {Description: "Receiving Facility", Datatype: "HD"},
				7:  {Description: "Date/Time of Message", Datatype: "TS", Required: true},
				8:  {Description: "Security", Datatype: "ST"},
				9: {Description: "Message Type", Datatype: "MSG", Required: true, Table: stdTable(
					TableEntry{Code: "ADT", Description: "ADT message"},
					TableEntry{Code: "ORM", Description: "Order message"},
					TableEntry{Code: "ORU", Description: "Observation result/unsolicited"},
					TableEntry{Code: "ACK", Description: "General acknowledgment"},
					TableEntry{Code: "SIU", Description: "Scheduling information unsolicited"},
					TableEntry{Code: "A01", Description: "Admit/Visit Notification"},
					TableEntry{Code: "A02", Description: "Transfer a Patient"},
					TableEntry{Code: "A03", Description: "Discharge/End Visit"},
					TableEntry{Code: "A04", Description: "Register a Patient"},
					TableEntry{Code: "A08", Description: "Update Patient Information"},
					TableEntry{Code: "O01", Description: "Order Message"},
					TableEntry{Code: "R01", Description: "Unsolicited Transmission of Observation"},
				)},
				10: {Description: "Message Control ID", Datatype: "ST", Required: true},
				11: {Description: "Processing ID", Datatype: "PT", Required: true, Table: stdTable(
					TableEntry{Code: "D", Description: "Debugging"},
					TableEntry{Code: "P", Description: "Production"},
					TableEntry{Code: "T", Description: "Training"},
				)},
				12: {Description: "Version ID", Datatype: "VID", Required: true},
				15: {Description: "Accept Acknowledgment Type", Datatype: "ID", Table: stdTable(
					TableEntry{Code: "AL", Description: "Always"},
					TableEntry{Code: "NE", Description: "Never"},
					TableEntry{Code: "ER", Description: "Error/reject conditions only"},
					TableEntry{Code: "SU", Description: "Successful completion only"},
				)},
				16: {Description: "Application Acknowledgment Type", Datatype: "ID"},
				18: {Description: "Character Set", Datatype: "ID"},
			},
		},
		"EVN": {
			Name:        "EVN",
			Description: "Event Type",
			Fields: map[int]Field{
				1: {Description: "Event Type Code", Datatype: "ID"},
				2: {Description: "Recorded Date/Time", Datatype: "TS", Required: true},
				4: {Description: "Event Reason Code", Datatype: "IS"},
				5: {Description: "Operator ID", Datatype: "XCN"},
				6: {Description: "Event Occurred", Datatype: "TS"},
			},
		},
		"PID": {
			Name:        "PID",
			Description: "Patient Identification",
			Fields: map[int]Field{
				1:  {Description: "Set ID - PID", Datatype: "SI"},
				2:  {Description: "Patient ID", Datatype: "CX"},
				3:  {Description: "Patient Identifier List", Datatype: "CX", Required: true},
				4:  {Description: "Alternate Patient ID - PID", Datatype: "CX"},
				5:  {Description: "Patient Name", Datatype: "XPN"},
				6:  {Description: "Mother's Maiden Name", Datatype: "XPN"},
				7:  {Description: "Date/Time of Birth", Datatype: "TS"},
				8: {Description: "Administrative Sex", Datatype: "IS", Table: stdTable(
					TableEntry{Code: "A", Description: "Ambiguous"},
					TableEntry{Code: "F", Description: "Female"},
					TableEntry{Code: "M", Description: "Male"},
					TableEntry{Code: "N", Description: "Not applicable"},
					TableEntry{Code: "O", Description: "Other"},
					TableEntry{Code: "U", Description: "Unknown"},
				)},
				11: {Description: "Patient Address", Datatype: "XAD"},
				13: {Description: "Phone Number - Home", Datatype: "XTN"},
				18: {Description: "Patient Account Number", Datatype: "CX"},
				19: {Description: "SSN Number - Patient", Datatype: "ST"},
				29: {Description: "Patient Death Date and Time", Datatype: "TS"},
				30: {Description: "Patient Death Indicator", Datatype: "ID"},
			},
		},
		"PV1": {
			Name:        "PV1",
			Description: "Patient Visit",
			Fields: map[int]Field{
				1: {Description: "Set ID - PV1", Datatype: "SI"},
				2: {Description: "Patient Class", Datatype: "IS", Required: true, Table: stdTable(
					TableEntry{Code: "B", Description: "Obstetrics"},
					TableEntry{Code: "C", Description: "Commercial Account"},
					TableEntry{Code: "E", Description: "Emergency"},
					TableEntry{Code: "I", Description: "Inpatient"},
					TableEntry{Code: "N", Description: "Not Applicable"},
					TableEntry{Code: "O", Description: "Outpatient"},
					TableEntry{Code: "P", Description: "Preadmit"},
					TableEntry{Code: "R", Description: "Recurring patient"},
					TableEntry{Code: "U", Description: "Unknown"},
				)},
				3:  {Description: "Assigned Patient Location", Datatype: "PL"},
				4:  {Description: "Admission Type", Datatype: "IS"},
				7:  {Description: "Attending Doctor", Datatype: "XCN"},
				8:  {Description: "Referring Doctor", Datatype: "XCN"},
				10: {Description: "Hospital Service", Datatype: "IS"},
				14: {Description: "Admit Source", Datatype: "IS"},
				19: {Description: "Visit Number", Datatype: "CX"},
				44: {Description: "Admit Date/Time", Datatype: "TS"},
				45: {Description: "Discharge Date/Time", Datatype: "TS"},
			},
		},
		"NK1": {
			Name:        "NK1",
			Description: "Next of Kin / Associated Parties",
			Fields: map[int]Field{
				1: {Description: "Set ID - NK1", Datatype: "SI", Required: true},
				2: {Description: "Name", Datatype: "XPN"},
				3: {Description: "Relationship", Datatype: "CE", Table: stdTable(
					TableEntry{Code: "CHD", Description: "Child"},
					TableEntry{Code: "DOM", Description: "Life partner"},
					TableEntry{Code: "FND", Description: "Friend"},
					TableEntry{Code: "PAR", Description: "Parent"},
					TableEntry{Code: "SIB", Description: "Sibling"},
					TableEntry{Code: "SPO", Description: "Spouse"},
					TableEntry{Code: "OTH", Description: "Other"},
				)},
				4: {Description: "Address", Datatype: "XAD"},
				5: {Description: "Phone Number", Datatype: "XTN"},
			},
		},
		"AL1": {
			Name:        "AL1",
			Description: "Patient Allergy Information",
			Fields: map[int]Field{
				1: {Description: "Set ID - AL1", Datatype: "SI", Required: true},
				2: {Description: "Allergen Type Code", Datatype: "CE", Table: stdTable(
					TableEntry{Code: "DA", Description: "Drug allergy"},
					TableEntry{Code: "EA", Description: "Environmental allergy"},
					TableEntry{Code: "FA", Description: "Food allergy"},
					TableEntry{Code: "LA", Description: "Pollen allergy"},
					TableEntry{Code: "MA", Description: "Miscellaneous allergy"},
					TableEntry{Code: "MC", Description: "Miscellaneous contraindication"},
				)},
				3: {Description: "Allergen Code/Mnemonic/Description", Datatype: "CE", Required: true},
				4: {Description: "Allergy Severity Code", Datatype: "CE", Table: stdTable(
					TableEntry{Code: "MI", Description: "Mild"},
					TableEntry{Code: "MO", Description: "Moderate"},
					TableEntry{Code: "SV", Description: "Severe"},
					TableEntry{Code: "U", Description: "Unknown"},
				)},
				5: {Description: "Allergy Reaction Code", Datatype: "ST"},
				6: {Description: "Identification Date", Datatype: "DT"},
			},
		},
		"DG1": {
			Name:        "DG1",
			Description: "Diagnosis",
			Fields: map[int]Field{
				1: {Description: "Set ID - DG1", Datatype: "SI", Required: true},
				3: {Description: "Diagnosis Code - DG1", Datatype: "CE"},
				4: {Description: "Diagnosis Description", Datatype: "ST"},
				5: {Description: "Diagnosis Date/Time", Datatype: "TS"},
				6: {Description: "Diagnosis Type", Datatype: "IS", Required: true, Table: stdTable(
					TableEntry{Code: "A", Description: "Admitting"},
					TableEntry{Code: "F", Description: "Final"},
					TableEntry{Code: "W", Description: "Working"},
				)},
			},
		},
		"ORC": {
			Name:        "ORC",
			Description: "Common Order",
			Fields: map[int]Field{
				1: {Description: "Order Control", Datatype: "ID", Required: true, Table: stdTable(
					TableEntry{Code: "NW", Description: "New order/service"},
					TableEntry{Code: "OK", Description: "Order/service accepted & OK"},
					TableEntry{Code: "CA", Description: "Cancel order/service request"},
					TableEntry{Code: "DC", Description: "Discontinue order/service request"},
					TableEntry{Code: "HD", Description: "Hold order request"},
					TableEntry{Code: "RL", Description: "Release previous hold"},
					TableEntry{Code: "SC", Description: "Status changed"},
				)},
				2: {Description: "Placer Order Number", Datatype: "EI"},
				3: {Description: "Filler Order Number", Datatype: "EI"},
				5: {Description: "Order Status", Datatype: "ID"},
				9: {Description: "Date/Time of Transaction", Datatype: "TS"},
			},
		},
		"OBR": {
			Name:        "OBR",
			Description: "Observation Request",
			Fields: map[int]Field{
				1:  {Description: "Set ID - OBR", Datatype: "SI"},
				2:  {Description: "Placer Order Number", Datatype: "EI"},
				3:  {Description: "Filler Order Number", Datatype: "EI"},
				4:  {Description: "Universal Service Identifier", Datatype: "CE", Required: true},
				7:  {Description: "Observation Date/Time", Datatype: "TS"},
				16: {Description: "Ordering Provider", Datatype: "XCN"},
				22: {Description: "Results Rpt/Status Chng - Date/Time", Datatype: "TS"},
				25: {Description: "Result Status", Datatype: "ID"},
			},
		},
		"OBX": {
			Name:        "OBX",
			Description: "Observation/Result",
			Fields: map[int]Field{
				1: {Description: "Set ID - OBX", Datatype: "SI"},
				2: {Description: "Value Type", Datatype: "ID", Table: stdTable(
					TableEntry{Code: "CE", Description: "Coded Entry"},
					TableEntry{Code: "DT", Description: "Date"},
					TableEntry{Code: "FT", Description: "Formatted Text"},
					TableEntry{Code: "NM", Description: "Numeric"},
					TableEntry{Code: "ST", Description: "String Data"},
					TableEntry{Code: "TM", Description: "Time"},
					TableEntry{Code: "TS", Description: "Time Stamp"},
					TableEntry{Code: "TX", Description: "Text Data"},
				)},
				3: {Description: "Observation Identifier", Datatype: "CE", Required: true},
				5: {Description: "Observation Value", Datatype: "varies"},
				6: {Description: "Units", Datatype: "CE"},
				8: {Description: "Abnormal Flags", Datatype: "IS", Table: stdTable(
					TableEntry{Code: "A", Description: "Abnormal"},
					TableEntry{Code: "AA", Description: "Very abnormal"},
					TableEntry{Code: "H", Description: "Above high normal"},
					TableEntry{Code: "HH", Description: "Above upper panic limits"},
					TableEntry{Code: "L", Description: "Below low normal"},
					TableEntry{Code: "LL", Description: "Below lower panic limits"},
					TableEntry{Code: "N", Description: "Normal"},
				)},
				11: {Description: "Observation Result Status", Datatype: "ID", Required: true, Table: stdTable(
					TableEntry{Code: "C", Description: "Record coming over is a correction"},
					TableEntry{Code: "D", Description: "Deletes the OBX record"},
					TableEntry{Code: "F", Description: "Final results"},
					TableEntry{Code: "P", Description: "Preliminary results"},
					TableEntry{Code: "X", Description: "Results cannot be obtained"},
				)},
				14: {Description: "Date/Time of the Observation", Datatype: "TS"},
			},
		},
		"IN1": {
			Name:        "IN1",
			Description: "Insurance",
			Fields: map[int]Field{
				1:  {Description: "Set ID - IN1", Datatype: "SI", Required: true},
				2:  {Description: "Insurance Plan ID", Datatype: "CE", Required: true},
				3:  {Description: "Insurance Company ID", Datatype: "CX", Required: true},
				4:  {Description: "Insurance Company Name", Datatype: "XON"},
				36: {Description: "Policy Number", Datatype: "ST"},
			},
		},
		"GT1": {
			Name:        "GT1",
			Description: "Guarantor",
			Fields: map[int]Field{
				1: {Description: "Set ID - GT1", Datatype: "SI", Required: true},
				2: {Description: "Guarantor Number", Datatype: "CX"},
				3: {Description: "Guarantor Name", Datatype: "XPN", Required: true},
				5: {Description: "Guarantor Address", Datatype: "XAD"},
			},
		},
		"NTE": {
			Name:        "NTE",
			Description: "Notes and Comments",
			Fields: map[int]Field{
				1: {Description: "Set ID - NTE", Datatype: "SI"},
				3: {Description: "Comment", Datatype: "FT"},
			},
		},
	}
}
